package types

import (
	"github.com/google/uuid"
)

// OwnerKind discriminates the two identities a request can resolve to.
type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner is the identity attributed to a request: either an authenticated
// user or a guest. Exactly one of UserID / GuestID is meaningful, as given
// by Kind.
type Owner struct {
	Kind    OwnerKind
	UserID  string
	GuestID uuid.UUID
	Secret  string
}

// UserOwner returns the Owner for an authenticated subject.
func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerUser, UserID: userID}
}

// GuestOwner returns the Owner for a guest identity.
func GuestOwner(guestID uuid.UUID, secret string) Owner {
	return Owner{Kind: OwnerGuest, GuestID: guestID, Secret: secret}
}

func (o Owner) IsGuest() bool {
	return o.Kind == OwnerGuest
}

func (o Owner) IsUser() bool {
	return o.Kind == OwnerUser
}

// String identifies the owner for logs. It never includes the secret.
func (o Owner) String() string {
	switch o.Kind {
	case OwnerUser:
		return "user:" + o.UserID
	case OwnerGuest:
		return "guest:" + o.GuestID.String()
	default:
		return "unresolved"
	}
}
