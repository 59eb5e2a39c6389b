package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the portal roles recognised by the RBAC middleware.
type UserRole string

const (
	RoleRequester    UserRole = "REQUESTER"
	RoleStaff        UserRole = "STAFF"
	RoleSuperSteward UserRole = "SUPER_STEWARD"
)

// JWTClaims is the identity-provider token payload. The engine trusts the
// provider for subject attribution and never re-derives identity.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
