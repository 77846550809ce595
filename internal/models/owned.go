package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/internal/types"
)

// Ownership is embedded by every record that belongs to a guest or a
// profile. Exactly one of the two columns is non-null; the check constraint
// enforces it in the database and conversion rewrites both columns at once.
type Ownership struct {
	OwnerGuestID   *uuid.UUID `gorm:"type:uuid;index;check:(owner_guest_id IS NULL) <> (owner_profile_id IS NULL)" json:"owner_guest_id,omitempty"`
	OwnerProfileID *string    `gorm:"size:255;index" json:"owner_profile_id,omitempty"`
}

// OwnedBy returns the ownership columns for a resolved owner.
func OwnedBy(owner types.Owner) Ownership {
	if owner.IsGuest() {
		id := owner.GuestID
		return Ownership{OwnerGuestID: &id}
	}
	userID := owner.UserID
	return Ownership{OwnerProfileID: &userID}
}

// Valid reports whether exactly one owner column is set.
func (o Ownership) Valid() bool {
	return (o.OwnerGuestID == nil) != (o.OwnerProfileID == nil)
}

// ScopeOwner restricts a query to records belonging to owner.
func ScopeOwner(owner types.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsGuest() {
			return db.Where("owner_guest_id = ?", owner.GuestID)
		}
		return db.Where("owner_profile_id = ?", owner.UserID)
	}
}

// OwnedTables lists the models whose ownership moves when a guest converts.
func OwnedTables() []any {
	return []any{
		&Conversation{},
		&Recipe{},
		&MealPlan{},
		&GroceryList{},
	}
}

// JSONBStringArray is a custom type for handling string arrays in JSONB
type JSONBStringArray []string

// Value implements the driver.Valuer interface
func (a JSONBStringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, a)
}
