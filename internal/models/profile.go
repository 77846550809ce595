package models

import (
	"time"
)

// Profile is the durable identity of an authenticated subject. ID is the
// auth provider's subject identifier, never generated locally.
type Profile struct {
	ID        string    `gorm:"size:255;primarykey" json:"id"`
	Email     *string   `gorm:"size:320" json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
