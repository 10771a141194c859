// Package controlplane is the read/write admin HTTP API served
// alongside the TCP director: account management, zone and connection
// introspection, live kick, and a Prometheus scrape endpoint. It never
// touches the wire protocol directly — everything it does goes through
// serverdirector.Director's exported introspection methods and
// internal/database.
package controlplane

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MultiDragon/libpuns/pkg/config"
)

// Errors returned by JWTService, distinguished so handlers can map them
// to the right HTTP status.
var (
	ErrInvalidToken        = errors.New("controlplane: invalid token")
	ErrExpiredToken        = errors.New("controlplane: token has expired")
	ErrInvalidSecretLength = errors.New("controlplane: jwt secret must be at least 32 characters")
)

// Claims is the JWT payload issued after a successful admin login.
// libpuns has a single admin principal (config.AdminConfig), so Claims
// carries only the username, unlike a multi-role system's Claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWTService signs and validates the bearer tokens controlplane's
// authenticated routes require. It never touches the TCP wire
// protocol's own login/token pair (spec's ConnectionRequest) - this is
// a second, independent credential for the admin surface only.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTService builds a JWTService from config.JWTConfig. Secret must
// be at least 32 characters; TTL defaults to 24h if unset (applied by
// pkg/config.ApplyDefaults, not repeated here).
func NewJWTService(cfg config.JWTConfig) (*JWTService, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	return &JWTService{secret: []byte(cfg.Secret), issuer: "libpuns", ttl: cfg.TTL}, nil
}

// Issue signs a token for username, valid for the configured TTL.
func (s *JWTService) Issue(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("controlplane: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a bearer token, returning its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("controlplane: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
