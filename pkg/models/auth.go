package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated identity plus the upstream interest
// provider token, so ranking can fetch declared interests on behalf of the
// caller.
type JWTClaims struct {
	UserID        string `json:"user_id"`
	InterestToken string `json:"interest_token,omitempty"`
	jwt.RegisteredClaims
}
