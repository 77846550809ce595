package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// ProviderClaims is the subset of the auth provider's access token we read.
// The subject is the stable user identifier; email is optional.
type ProviderClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Claim is a verified authenticated subject extracted from a request.
type Claim struct {
	SubjectID string
	Email     string
}
