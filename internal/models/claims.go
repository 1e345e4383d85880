package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the JWT claims issued by the account service. This pipeline
// only validates them; it never issues tokens.
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
