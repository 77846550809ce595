package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/internal/models"
	"github.com/pageza/mealplanner/backend/internal/types"
)

// CreateGuest inserts an unconverted guest with secret.
func CreateGuest(t *testing.T, db *gorm.DB, secret string) *models.Guest {
	t.Helper()
	guest := &models.Guest{ID: uuid.New(), Secret: secret, CreatedAt: time.Now().UTC()}
	if err := db.Create(guest).Error; err != nil {
		t.Fatalf("failed to create guest: %v", err)
	}
	return guest
}

// CreateProfile inserts a profile for subjectID.
func CreateProfile(t *testing.T, db *gorm.DB, subjectID string) *models.Profile {
	t.Helper()
	profile := &models.Profile{ID: subjectID}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return profile
}

// CreateConversation inserts a conversation owned by owner.
func CreateConversation(t *testing.T, db *gorm.DB, owner types.Owner, title string) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{Ownership: models.OwnedBy(owner), Title: title}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	return conv
}

// CreateRecipe inserts a recipe owned by owner.
func CreateRecipe(t *testing.T, db *gorm.DB, owner types.Owner, name string) *models.Recipe {
	t.Helper()
	recipe := &models.Recipe{
		Ownership:    models.OwnedBy(owner),
		Name:         name,
		Ingredients:  models.JSONBStringArray{"flour", "water"},
		Instructions: models.JSONBStringArray{"mix", "bake"},
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	return recipe
}

// Ownership reloads the owner columns of a record in table.
func Ownership(t *testing.T, db *gorm.DB, table string, id uuid.UUID) models.Ownership {
	t.Helper()
	var o models.Ownership
	res := db.Table(table).Select("owner_guest_id, owner_profile_id").Where("id = ?", id).Scan(&o)
	if res.Error != nil || res.RowsAffected != 1 {
		t.Fatalf("failed to load ownership of %s %s: %v", table, id, res.Error)
	}
	return o
}

// SignToken issues an HS256 provider token for subject.
func SignToken(t *testing.T, secret, subject, email string) string {
	t.Helper()
	claims := types.ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
