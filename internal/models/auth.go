package models

import "github.com/golang-jwt/jwt/v5"

// ActorRole is the coarse role carried in access tokens.
type ActorRole string

const (
	RoleAdmin       ActorRole = "ADMIN"
	RoleCoordinator ActorRole = "COORDINATOR"
	RoleReviewer    ActorRole = "REVIEWER"
)

// JWTClaims represents the JWT payload issued by the external identity provider.
type JWTClaims struct {
	UserID   int64     `json:"userId"`
	Role     ActorRole `json:"role"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	jwt.RegisteredClaims
}
