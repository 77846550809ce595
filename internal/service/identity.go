package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/store"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// ErrIdentityUnavailable means the owner of a request could not be resolved
// because storage failed. Callers must not fall back to an anonymous owner.
var ErrIdentityUnavailable = errors.New("identity could not be resolved")

// CookieCodec encodes guest credentials into a cookie value and back.
type CookieCodec interface {
	Encode(guestID uuid.UUID, secret string) string
	Decode(value string) (uuid.UUID, string, error)
}

// Resolution is the result of resolving a request's identity.
type Resolution struct {
	Owner types.Owner
	// Email of the authenticated subject, if known.
	Email string
	// SetCookie is the new guest cookie value to send, or "" for none.
	SetCookie string
}

// IdentityResolver attributes every request to exactly one owner: the
// authenticated subject when a claim is present, otherwise a guest.
type IdentityResolver struct {
	store     IdentityStore
	cache     TokenCache
	codec     CookieCodec
	newSecret func() (string, error)
	newID     func() uuid.UUID
}

func NewIdentityResolver(store IdentityStore, cache TokenCache, codec CookieCodec, newSecret func() (string, error)) *IdentityResolver {
	return &IdentityResolver{
		store:     store,
		cache:     cache,
		codec:     codec,
		newSecret: newSecret,
		newID:     uuid.New,
	}
}

// Resolve returns the owner for a request carrying claim (nil when
// unauthenticated) and the raw guest cookie value ("" when absent).
func (r *IdentityResolver) Resolve(ctx context.Context, claim *types.Claim, cookie string) (*Resolution, error) {
	if claim != nil {
		return r.resolveUser(ctx, claim)
	}

	if cookie != "" {
		guestID, secret, err := r.codec.Decode(cookie)
		if err == nil {
			ok, err := r.validGuest(ctx, guestID, secret)
			if err != nil {
				return nil, err
			}
			if ok {
				return &Resolution{Owner: types.GuestOwner(guestID, secret)}, nil
			}
		}
	}

	return r.createGuest(ctx)
}

func (r *IdentityResolver) resolveUser(ctx context.Context, claim *types.Claim) (*Resolution, error) {
	profile, write, err := r.store.UpsertProfile(ctx, claim.SubjectID, claim.Email)
	if err != nil {
		slog.Default().ErrorContext(ctx, "profile upsert failed",
			"module", "identity",
			"operation", "resolve",
			"outcome", "failure",
			"user_id", claim.SubjectID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	switch write {
	case store.ProfileCreated:
		slog.Default().InfoContext(ctx, "profile created",
			"module", "identity",
			"operation", "resolve",
			"user_id", profile.ID,
		)
	case store.ProfileEmailUpdated:
		slog.Default().InfoContext(ctx, "profile email refreshed",
			"module", "identity",
			"operation", "resolve",
			"user_id", profile.ID,
		)
	}

	res := &Resolution{Owner: types.UserOwner(profile.ID)}
	if profile.Email != nil {
		res.Email = *profile.Email
	}
	return res, nil
}

// validGuest reports whether (guestID, secret) names a live, unconverted
// guest. Unknown and converted guests are not errors.
func (r *IdentityResolver) validGuest(ctx context.Context, guestID uuid.UUID, secret string) (bool, error) {
	if cached, ok := r.cache.Get(guestID); ok {
		return secretsEqual(cached, secret), nil
	}

	stamp := r.cache.Stamp()
	guest, ok, err := r.loadGuest(ctx, guestID)
	if err != nil || !ok {
		return false, err
	}
	if !secretsEqual(guest.Secret, secret) {
		return false, nil
	}
	if r.cache.PutIfNotInvalidatedSince(guestID, guest.Secret, stamp) {
		return true, nil
	}

	// The guest was invalidated while we read it, most likely converted.
	// Storage has the final word; the answer is not cached.
	_, ok, err = r.loadGuest(ctx, guestID)
	return ok, err
}

// loadGuest reads guestID from storage. Unknown and converted guests are
// reported as absent and their cache entries dropped.
func (r *IdentityResolver) loadGuest(ctx context.Context, guestID uuid.UUID) (*models.Guest, bool, error) {
	guest, err := r.store.GetGuest(ctx, guestID)
	switch {
	case errors.Is(err, store.ErrGuestNotFound):
		r.cache.Invalidate(guestID)
		return nil, false, nil
	case err != nil:
		slog.Default().ErrorContext(ctx, "guest lookup failed",
			"module", "identity",
			"operation", "resolve",
			"outcome", "failure",
			"guest_id", guestID,
			"error", err,
		)
		return nil, false, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	if guest.ConvertedToProfile {
		r.cache.Invalidate(guestID)
		return nil, false, nil
	}
	return guest, true, nil
}

func (r *IdentityResolver) createGuest(ctx context.Context) (*Resolution, error) {
	secret, err := r.newSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	guest, err := r.store.CreateGuest(ctx, r.newID(), secret)
	if err != nil {
		slog.Default().ErrorContext(ctx, "guest creation failed",
			"module", "identity",
			"operation", "create_guest",
			"outcome", "failure",
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	r.cache.Put(guest.ID, guest.Secret)

	slog.Default().InfoContext(ctx, "guest created",
		"module", "identity",
		"operation", "create_guest",
		"outcome", "success",
		"guest_id", guest.ID,
	)

	return &Resolution{
		Owner:     types.GuestOwner(guest.ID, guest.Secret),
		SetCookie: r.codec.Encode(guest.ID, guest.Secret),
	}, nil
}

func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
