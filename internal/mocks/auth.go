package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/store"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// MockCredentialVerifier is a mock implementation of service.ICredentialVerifier
type MockCredentialVerifier struct {
	mock.Mock
}

func (m *MockCredentialVerifier) Verify(token string) (*types.Claim, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Claim), args.Error(1)
}

// MockIdentityStore is a mock implementation of service.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) UpsertProfile(ctx context.Context, subjectID, email string) (*models.Profile, store.ProfileWrite, error) {
	args := m.Called(ctx, subjectID, email)
	if args.Get(0) == nil {
		return nil, args.Get(1).(store.ProfileWrite), args.Error(2)
	}
	return args.Get(0).(*models.Profile), args.Get(1).(store.ProfileWrite), args.Error(2)
}

func (m *MockIdentityStore) CreateGuest(ctx context.Context, id uuid.UUID, secret string) (*models.Guest, error) {
	args := m.Called(ctx, id, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Guest), args.Error(1)
}

func (m *MockIdentityStore) GetGuest(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Guest), args.Error(1)
}

// MockConversionStore fails or succeeds a conversion transaction without
// running it.
type MockConversionStore struct {
	mock.Mock
}

func (m *MockConversionStore) InConversionTx(ctx context.Context, fn func(tx store.ConversionTx) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}
