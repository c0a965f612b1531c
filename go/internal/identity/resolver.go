package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Resolver verifies HS256 tokens and returns their subject as the caller's
// identity
type Resolver struct {
	secretKey []byte
	duration  time.Duration
	now       func() time.Time
}

// NewResolver creates a resolver. duration is the lifetime of tokens minted
// by Issue.
func NewResolver(secretKey string, duration time.Duration) *Resolver {
	return &Resolver{
		secretKey: []byte(secretKey),
		duration:  duration,
		now:       time.Now,
	}
}

// Resolve returns the identity carried in token
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}
		return r.secretKey, nil
	}, jwt.WithTimeFunc(r.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// Issue signs a token for subject. Used by tooling and tests; account
// sign-up lives outside this service.
func (r *Resolver) Issue(subject string) (string, error) {
	now := r.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.duration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
