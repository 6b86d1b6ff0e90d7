package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the staff identity encoded into a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Name   string
	Role   string
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by warehouse and
// back-office staff.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the display name recorded in audit trails: the name when present,
// otherwise the user id.
func (c *AccessTokenClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.UserID.String()
}
