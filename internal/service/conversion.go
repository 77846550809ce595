package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/store"
)

// ConversionOutcome is the terminal result of a conversion attempt.
type ConversionOutcome string

const (
	Converted                       ConversionOutcome = "converted"
	AlreadyConvertedToSameUser      ConversionOutcome = "already_converted"
	AlreadyConvertedToDifferentUser ConversionOutcome = "converted_to_different_user"
	GuestNotFound                   ConversionOutcome = "guest_not_found"
	InvalidSecret                   ConversionOutcome = "invalid_secret"
)

// ConvertRequest identifies the guest to claim, the account claiming it and
// where the request came from.
type ConvertRequest struct {
	UserID    string
	GuestID   uuid.UUID
	Secret    string
	IPAddress string
	UserAgent string
}

// ConversionService moves everything a guest owns to an authenticated
// account. Each guest converts at most once.
type ConversionService struct {
	store ConversionStore
	cache TokenCache
	now   func() time.Time
}

func NewConversionService(store ConversionStore, cache TokenCache) *ConversionService {
	return &ConversionService{
		store: store,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Convert runs the conversion in a single transaction holding a lock on the
// guest row. Only infrastructure failures are returned as errors; in that
// case nothing was changed.
func (s *ConversionService) Convert(ctx context.Context, req ConvertRequest) (ConversionOutcome, error) {
	if req.UserID == "" {
		return "", errors.New("convert: user id is required")
	}

	var (
		outcome ConversionOutcome
		moved   int64
	)
	err := s.store.InConversionTx(ctx, func(tx store.ConversionTx) error {
		guest, err := tx.LockGuest(req.GuestID)
		if errors.Is(err, store.ErrGuestNotFound) {
			outcome = GuestNotFound
			return nil
		}
		if err != nil {
			return err
		}

		if guest.ConvertedToProfile {
			if guest.ConvertedUserID != nil && *guest.ConvertedUserID == req.UserID {
				outcome = AlreadyConvertedToSameUser
			} else {
				outcome = AlreadyConvertedToDifferentUser
			}
			return nil
		}

		if !secretsEqual(guest.Secret, req.Secret) {
			outcome = InvalidSecret
			return nil
		}

		if moved, err = tx.ReassignOwnedRecords(req.GuestID, req.UserID); err != nil {
			return err
		}
		if err := tx.MarkGuestConverted(req.GuestID, req.UserID, s.now()); err != nil {
			return err
		}
		if err := tx.RecordConversion(&models.GuestConversionAudit{
			GuestID:    req.GuestID,
			UserID:     req.UserID,
			IPAddress:  truncate(req.IPAddress, 64),
			UserAgent:  truncate(req.UserAgent, 512),
			Reassigned: moved,
		}); err != nil {
			return err
		}
		outcome = Converted
		return nil
	})
	if err != nil {
		slog.Default().ErrorContext(ctx, "guest conversion failed",
			"module", "conversion",
			"operation", "convert",
			"outcome", "failure",
			"guest_id", req.GuestID,
			"user_id", req.UserID,
			"error", err,
		)
		return "", fmt.Errorf("convert guest %s: %w", req.GuestID, err)
	}

	if outcome == Converted {
		s.cache.Invalidate(req.GuestID)
	}

	level := slog.LevelInfo
	if outcome == InvalidSecret || outcome == AlreadyConvertedToDifferentUser {
		level = slog.LevelWarn
	}
	slog.Default().Log(ctx, level, "guest conversion completed",
		"module", "conversion",
		"operation", "convert",
		"outcome", string(outcome),
		"guest_id", req.GuestID,
		"user_id", req.UserID,
		"reassigned", moved,
	)
	return outcome, nil
}

// truncate drops invalid UTF-8 from s and cuts it to at most n bytes on a
// rune boundary. Header values may carry raw obs-text bytes.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
