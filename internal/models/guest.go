package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is a provisional identity handed to visitors who have not signed in.
// Secret is the conversion token; it proves control of the guest at sign-up.
// ConvertedToProfile only ever moves from false to true, together with
// ConvertedUserID and ConvertedAt.
type Guest struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primarykey" json:"id"`
	Secret             string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ConvertedToProfile bool       `gorm:"not null;default:false" json:"converted_to_profile"`
	ConvertedUserID    *string    `gorm:"size:255;index" json:"converted_user_id,omitempty"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (Guest) TableName() string {
	return "guests"
}

// GuestConversionAudit records a successful guest conversion and where the
// request came from.
type GuestConversionAudit struct {
	ID         uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	GuestID    uuid.UUID `gorm:"type:uuid;not null;index" json:"guest_id"`
	UserID     string    `gorm:"size:255;not null;index" json:"user_id"`
	IPAddress  string    `gorm:"size:64" json:"ip_address"`
	UserAgent  string    `gorm:"size:512" json:"user_agent"`
	Reassigned int64     `gorm:"not null;default:0" json:"reassigned"`
	CreatedAt  time.Time `json:"created_at"`
}

func (GuestConversionAudit) TableName() string {
	return "guest_conversion_audits"
}
