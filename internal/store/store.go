// Package store is the identity storage layer: profiles, guests and the
// conversion transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/mealplanner/backend/internal/models"
)

var (
	ErrGuestNotFound = errors.New("guest not found")
	// ErrGuestAlreadyConverted is returned by MarkGuestConverted when the
	// guest row was converted underneath the caller.
	ErrGuestAlreadyConverted = errors.New("guest already converted")
)

// ProfileWrite says what UpsertProfile did.
type ProfileWrite int

const (
	ProfileUnchanged ProfileWrite = iota
	ProfileCreated
	ProfileEmailUpdated
)

// Store implements identity persistence on top of GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertProfile makes sure a profile exists for subjectID and refreshes its
// email when a different non-empty one is supplied. Concurrent first
// requests for the same subject both succeed: the insert ignores conflicts
// on id and the loser re-reads the winner's row.
func (s *Store) UpsertProfile(ctx context.Context, subjectID, email string) (*models.Profile, ProfileWrite, error) {
	db := s.db.WithContext(ctx)

	var profile models.Profile
	err := db.Take(&profile, "id = ?", subjectID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		now := s.now()
		profile = models.Profile{ID: subjectID, Email: optional(email), CreatedAt: now, UpdatedAt: now}
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&profile)
		if res.Error != nil {
			return nil, ProfileUnchanged, fmt.Errorf("create profile: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return &profile, ProfileCreated, nil
		}
		if err := db.Take(&profile, "id = ?", subjectID).Error; err != nil {
			return nil, ProfileUnchanged, fmt.Errorf("reload profile: %w", err)
		}
	case err != nil:
		return nil, ProfileUnchanged, fmt.Errorf("get profile: %w", err)
	}

	if email == "" || (profile.Email != nil && *profile.Email == email) {
		return &profile, ProfileUnchanged, nil
	}

	now := s.now()
	if err := db.Model(&models.Profile{}).
		Where("id = ?", subjectID).
		Updates(map[string]any{"email": email, "updated_at": now}).Error; err != nil {
		return nil, ProfileUnchanged, fmt.Errorf("update profile email: %w", err)
	}
	profile.Email = &email
	profile.UpdatedAt = now
	return &profile, ProfileEmailUpdated, nil
}

// GetProfile returns the profile with id, or gorm.ErrRecordNotFound.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Take(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateGuest inserts a new unconverted guest.
func (s *Store) CreateGuest(ctx context.Context, id uuid.UUID, secret string) (*models.Guest, error) {
	guest := models.Guest{ID: id, Secret: secret, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&guest).Error; err != nil {
		return nil, fmt.Errorf("create guest: %w", err)
	}
	return &guest, nil
}

// GetGuest returns the guest with id or ErrGuestNotFound.
func (s *Store) GetGuest(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	var guest models.Guest
	err := s.db.WithContext(ctx).Take(&guest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	return &guest, nil
}

// ConversionTx is the set of writes available inside a conversion
// transaction. Everything done through it commits or rolls back together.
type ConversionTx interface {
	// LockGuest reads the guest row and holds a row lock on it until the
	// transaction ends.
	LockGuest(guestID uuid.UUID) (*models.Guest, error)
	// ReassignOwnedRecords moves every record owned by guestID to userID and
	// returns how many rows moved.
	ReassignOwnedRecords(guestID uuid.UUID, userID string) (int64, error)
	MarkGuestConverted(guestID uuid.UUID, userID string, at time.Time) error
	RecordConversion(audit *models.GuestConversionAudit) error
}

// InConversionTx runs fn in a single database transaction. A non-nil error
// from fn rolls everything back.
func (s *Store) InConversionTx(ctx context.Context, fn func(tx ConversionTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&conversionTx{db: tx})
	})
}

type conversionTx struct {
	db *gorm.DB
}

func (t *conversionTx) LockGuest(guestID uuid.UUID) (*models.Guest, error) {
	var guest models.Guest
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&guest, "id = ?", guestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock guest: %w", err)
	}
	return &guest, nil
}

func (t *conversionTx) ReassignOwnedRecords(guestID uuid.UUID, userID string) (int64, error) {
	var moved int64
	for _, model := range models.OwnedTables() {
		res := t.db.Model(model).
			Where("owner_guest_id = ?", guestID).
			Updates(map[string]any{
				"owner_guest_id":   nil,
				"owner_profile_id": userID,
			})
		if res.Error != nil {
			return 0, fmt.Errorf("reassign %T: %w", model, res.Error)
		}
		moved += res.RowsAffected
	}
	return moved, nil
}

func (t *conversionTx) MarkGuestConverted(guestID uuid.UUID, userID string, at time.Time) error {
	res := t.db.Model(&models.Guest{}).
		Where("id = ? AND converted_to_profile = ?", guestID, false).
		Updates(map[string]any{
			"converted_to_profile": true,
			"converted_user_id":    userID,
			"converted_at":         at,
		})
	if res.Error != nil {
		return fmt.Errorf("mark guest converted: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrGuestAlreadyConverted
	}
	return nil
}

func (t *conversionTx) RecordConversion(audit *models.GuestConversionAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if err := t.db.Create(audit).Error; err != nil {
		return fmt.Errorf("record conversion audit: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
