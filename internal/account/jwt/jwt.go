package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the access/refresh token pair. The two token
// kinds use distinct HMAC secrets and are not interchangeable at verification.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID) (token string, exp time.Time, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, err error)
	ValidateAccessToken(token string) (Claims, error)
	ValidateRefreshToken(token string) (Claims, error)
}
