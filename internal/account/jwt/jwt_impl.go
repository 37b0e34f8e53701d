package jwt

import (
	"errors"
	"time"

	customErrors "github.com/clipstream/account-service/internal/account/errors"
	"github.com/clipstream/account-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	leeway        time.Duration
}

func NewTokenIssuer(cfg *config.Config) TokenIssuer {
	return &tokenIssuer{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		leeway:        cfg.ClockSkew,
	}
}

func (t *tokenIssuer) GenerateAccessToken(userID uuid.UUID) (string, time.Time, error) {
	return t.generate(userID, t.accessTTL, t.accessSecret)
}

func (t *tokenIssuer) GenerateRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	return t.generate(userID, t.refreshTTL, t.refreshSecret)
}

func (t *tokenIssuer) generate(userID uuid.UUID, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (t *tokenIssuer) ValidateAccessToken(raw string) (Claims, error) {
	return t.validate(raw, t.accessSecret)
}

func (t *tokenIssuer) ValidateRefreshToken(raw string) (Claims, error) {
	return t.validate(raw, t.refreshSecret)
}

func (t *tokenIssuer) validate(raw string, secret []byte) (Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(t.leeway))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, customErrors.ErrTokenExpired
		}
		return Claims{}, customErrors.ErrInvalidToken
	}

	if !token.Valid {
		return Claims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}
