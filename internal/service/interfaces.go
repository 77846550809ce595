package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/store"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// ICredentialVerifier turns a bearer token into a verified claim.
type ICredentialVerifier interface {
	Verify(token string) (*types.Claim, error)
}

// IdentityStore is the storage the resolver needs.
type IdentityStore interface {
	UpsertProfile(ctx context.Context, subjectID, email string) (*models.Profile, store.ProfileWrite, error)
	CreateGuest(ctx context.Context, id uuid.UUID, secret string) (*models.Guest, error)
	GetGuest(ctx context.Context, id uuid.UUID) (*models.Guest, error)
}

// ConversionStore runs the conversion read-modify-write in one transaction.
type ConversionStore interface {
	InConversionTx(ctx context.Context, fn func(tx store.ConversionTx) error) error
}

// TokenCache is the guest id -> secret fast path.
type TokenCache interface {
	Get(guestID uuid.UUID) (string, bool)
	Put(guestID uuid.UUID, secret string)
	Stamp() uint64
	PutIfNotInvalidatedSince(guestID uuid.UUID, secret string, stamp uint64) bool
	Invalidate(guestID uuid.UUID)
}

// IIdentityResolver resolves the Owner of a request.
type IIdentityResolver interface {
	Resolve(ctx context.Context, claim *types.Claim, cookie string) (*Resolution, error)
}

// IConversionService converts guests into profiles.
type IConversionService interface {
	Convert(ctx context.Context, req ConvertRequest) (ConversionOutcome, error)
}
