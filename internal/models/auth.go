package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleDataAdmin UserRole = "DATA_ADMIN"
	RoleViewer    UserRole = "VIEWER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDataAdmin, RoleViewer:
		return true
	}
	return false
}

// JWTClaims represents the JWT payload for access tokens. Tokens are minted
// by the identity provider; stemctl can mint development tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
