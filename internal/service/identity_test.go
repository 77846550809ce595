package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/internal/cache"
	"github.com/pageza/mealplanner/backend/internal/mocks"
	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/session"
	"github.com/pageza/mealplanner/backend/internal/store"
	"github.com/pageza/mealplanner/backend/internal/testhelpers"
	"github.com/pageza/mealplanner/backend/internal/types"
)

type resolverFixture struct {
	db       *gorm.DB
	cache    *cache.GuestTokenCache
	codec    *session.Codec
	resolver *service.IdentityResolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	codec, err := session.NewCodec(session.Options{Secret: strings.Repeat("k", 32), Name: "guest_session"})
	require.NoError(t, err)
	c := cache.NewGuestTokenCache()
	return &resolverFixture{
		db:       db,
		cache:    c,
		codec:    codec,
		resolver: service.NewIdentityResolver(store.New(db), c, codec, session.GenerateSecret),
	}
}

func TestResolveFreshVisitor(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 5; i++ {
		res, err := f.resolver.Resolve(ctx, nil, "")
		require.NoError(t, err)
		require.True(t, res.Owner.IsGuest())
		assert.NotEmpty(t, res.SetCookie)
		assert.False(t, seen[res.Owner.GuestID], "guest ids are never reused")
		seen[res.Owner.GuestID] = true

		id, secret, err := f.codec.Decode(res.SetCookie)
		require.NoError(t, err)
		assert.Equal(t, res.Owner.GuestID, id)
		assert.Equal(t, res.Owner.Secret, secret)

		cached, ok := f.cache.Get(id)
		assert.True(t, ok)
		assert.Equal(t, secret, cached)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Guest{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestResolveIdempotentWithCookie(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, nil, "")
	require.NoError(t, err)

	second, err := f.resolver.Resolve(ctx, nil, first.SetCookie)
	require.NoError(t, err)
	assert.Equal(t, first.Owner.GuestID, second.Owner.GuestID)
	assert.Empty(t, second.SetCookie)

	// Same answer from storage once the cache has forgotten the guest.
	f.cache.Invalidate(first.Owner.GuestID)
	third, err := f.resolver.Resolve(ctx, nil, first.SetCookie)
	require.NoError(t, err)
	assert.Equal(t, first.Owner.GuestID, third.Owner.GuestID)
	assert.Empty(t, third.SetCookie)
	_, ok := f.cache.Get(first.Owner.GuestID)
	assert.True(t, ok, "storage hit repopulates the cache")
}

func TestResolveBadCookieCreatesGuest(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	known := testhelpers.CreateGuest(t, f.db, "s1")
	tests := []struct {
		name   string
		cookie string
	}{
		{name: "garbage", cookie: "not-a-cookie"},
		{name: "tampered", cookie: f.codec.Encode(known.ID, "s1") + "x"},
		{name: "unknown guest", cookie: f.codec.Encode(uuid.New(), "s1")},
		{name: "wrong secret", cookie: f.codec.Encode(known.ID, "s2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.resolver.Resolve(ctx, nil, tt.cookie)
			require.NoError(t, err)
			assert.NotEqual(t, known.ID, res.Owner.GuestID)
			assert.NotEmpty(t, res.SetCookie)
		})
	}
}

func TestResolveConvertedGuestFallsThrough(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, nil, "")
	require.NoError(t, err)
	guestID := first.Owner.GuestID

	testhelpers.CreateProfile(t, f.db, "user-42")
	conv := service.NewConversionService(store.New(f.db), f.cache)
	outcome, err := conv.Convert(ctx, service.ConvertRequest{UserID: "user-42", GuestID: guestID, Secret: first.Owner.Secret})
	require.NoError(t, err)
	require.Equal(t, service.Converted, outcome)

	_, ok := f.cache.Get(guestID)
	assert.False(t, ok, "conversion invalidates the cached secret")

	res, err := f.resolver.Resolve(ctx, nil, first.SetCookie)
	require.NoError(t, err)
	assert.NotEqual(t, guestID, res.Owner.GuestID)
	assert.NotEmpty(t, res.SetCookie)
}

func TestResolveConvertedGuestIsNotCached(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	guest := testhelpers.CreateGuest(t, f.db, "s1")
	require.NoError(t, f.db.Model(&models.Guest{}).Where("id = ?", guest.ID).
		Updates(map[string]any{"converted_to_profile": true, "converted_user_id": "someone", "converted_at": guest.CreatedAt}).Error)

	_, err := f.resolver.Resolve(ctx, nil, f.codec.Encode(guest.ID, "s1"))
	require.NoError(t, err)
	_, ok := f.cache.Get(guest.ID)
	assert.False(t, ok)
}

// convertingStore converts the guest right after the resolver has read it,
// so the conversion's cache invalidation lands between the read and the fill.
type convertingStore struct {
	*store.Store
	once    sync.Once
	convert func()
}

func (s *convertingStore) GetGuest(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	guest, err := s.Store.GetGuest(ctx, id)
	s.once.Do(s.convert)
	return guest, err
}

func TestResolveConversionDuringGuestRead(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	guest := testhelpers.CreateGuest(t, f.db, "s1")
	testhelpers.CreateProfile(t, f.db, "user-42")
	cookie := f.codec.Encode(guest.ID, "s1")
	conv := service.NewConversionService(store.New(f.db), f.cache)

	var outcome service.ConversionOutcome
	st := &convertingStore{Store: store.New(f.db), convert: func() {
		var err error
		outcome, err = conv.Convert(ctx, service.ConvertRequest{UserID: "user-42", GuestID: guest.ID, Secret: "s1"})
		require.NoError(t, err)
	}}
	resolver := service.NewIdentityResolver(st, f.cache, f.codec, session.GenerateSecret)

	res, err := resolver.Resolve(ctx, nil, cookie)
	require.NoError(t, err)
	require.Equal(t, service.Converted, outcome)
	assert.NotEqual(t, guest.ID, res.Owner.GuestID, "a guest converted mid-read is not handed out")
	assert.NotEmpty(t, res.SetCookie)

	_, cached := f.cache.Get(guest.ID)
	assert.False(t, cached, "the converted guest is not put back in the cache")

	later, err := f.resolver.Resolve(ctx, nil, cookie)
	require.NoError(t, err)
	assert.NotEqual(t, guest.ID, later.Owner.GuestID)
	assert.NotEmpty(t, later.SetCookie)
}

func TestResolveConcurrentWithConversion(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()
	testhelpers.CreateProfile(t, f.db, "user-42")
	conv := service.NewConversionService(store.New(f.db), f.cache)

	for i := 0; i < 20; i++ {
		guest := testhelpers.CreateGuest(t, f.db, "s1")
		cookie := f.codec.Encode(guest.ID, "s1")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.resolver.Resolve(ctx, nil, cookie)
		}()
		go func() {
			defer wg.Done()
			_, _ = conv.Convert(ctx, service.ConvertRequest{UserID: "user-42", GuestID: guest.ID, Secret: "s1"})
		}()
		wg.Wait()

		res, err := f.resolver.Resolve(ctx, nil, cookie)
		require.NoError(t, err)
		assert.NotEqual(t, guest.ID, res.Owner.GuestID, "iteration %d", i)
	}
}

func TestResolveAuthenticated(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	guestRes, err := f.resolver.Resolve(ctx, nil, "")
	require.NoError(t, err)

	claim := &types.Claim{SubjectID: "auth0|abc", Email: "cook@example.com"}
	res, err := f.resolver.Resolve(ctx, claim, guestRes.SetCookie)
	require.NoError(t, err)
	assert.True(t, res.Owner.IsUser())
	assert.Equal(t, "auth0|abc", res.Owner.UserID)
	assert.Equal(t, "cook@example.com", res.Email)
	assert.Empty(t, res.SetCookie, "authenticated requests never get a guest cookie")

	res, err = f.resolver.Resolve(ctx, &types.Claim{SubjectID: "auth0|abc", Email: "chef@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, "chef@example.com", res.Email)

	var profile models.Profile
	require.NoError(t, f.db.Take(&profile, "id = ?", "auth0|abc").Error)
	assert.Equal(t, "chef@example.com", *profile.Email)
}

func TestResolveStorageFailure(t *testing.T) {
	codec, err := session.NewCodec(session.Options{Secret: strings.Repeat("k", 32), Name: "guest_session"})
	require.NoError(t, err)
	c := cache.NewGuestTokenCache()
	boom := errors.New("connection refused")
	ctx := context.Background()

	t.Run("profile upsert", func(t *testing.T) {
		st := new(mocks.MockIdentityStore)
		st.On("UpsertProfile", mock.Anything, "user-1", "").Return(nil, store.ProfileUnchanged, boom)
		r := service.NewIdentityResolver(st, c, codec, session.GenerateSecret)

		res, err := r.Resolve(ctx, &types.Claim{SubjectID: "user-1"}, "")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, service.ErrIdentityUnavailable)
		st.AssertExpectations(t)
	})

	t.Run("guest creation", func(t *testing.T) {
		st := new(mocks.MockIdentityStore)
		st.On("CreateGuest", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)
		r := service.NewIdentityResolver(st, c, codec, session.GenerateSecret)

		res, err := r.Resolve(ctx, nil, "")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, service.ErrIdentityUnavailable)
		assert.Zero(t, c.Len(), "nothing cached when the guest was not stored")
	})

	t.Run("guest lookup", func(t *testing.T) {
		guestID := uuid.New()
		st := new(mocks.MockIdentityStore)
		st.On("GetGuest", mock.Anything, guestID).Return(nil, boom)
		r := service.NewIdentityResolver(st, c, codec, session.GenerateSecret)

		res, err := r.Resolve(ctx, nil, codec.Encode(guestID, "s1"))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, service.ErrIdentityUnavailable)
		st.AssertNotCalled(t, "CreateGuest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("secret generation", func(t *testing.T) {
		st := new(mocks.MockIdentityStore)
		r := service.NewIdentityResolver(st, c, codec, func() (string, error) { return "", boom })

		_, err := r.Resolve(ctx, nil, "")
		assert.ErrorIs(t, err, service.ErrIdentityUnavailable)
		st.AssertNotCalled(t, "CreateGuest", mock.Anything, mock.Anything, mock.Anything)
	})
}
