// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAuthToken is returned when a bearer token fails verification.
var ErrInvalidAuthToken = errors.New("invalid auth token")

// TokenIssuer mints and verifies the HS256 JWTs returned by finish-login.
// The subject claim is the username, which lets clients restore a session
// from the persisted token alone.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	expiresIn time.Duration
}

// TokenIssuerConfig contains configuration for the token issuer.
type TokenIssuerConfig struct {
	// Secret is the HMAC signing secret. Generated when empty.
	Secret []byte

	// Issuer is the JWT issuer claim (default: "go-passkey").
	Issuer string

	// ExpiresIn is how long tokens are valid (default: 24 hours).
	ExpiresIn time.Duration
}

// NewTokenIssuer creates a token issuer with the given configuration.
func NewTokenIssuer(config *TokenIssuerConfig) (*TokenIssuer, error) {
	if config == nil {
		config = &TokenIssuerConfig{}
	}

	secret := config.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}

	return &TokenIssuer{
		secret:    secret,
		issuer:    issuer,
		expiresIn: expiresIn,
	}, nil
}

// Issue creates a signed token for the authenticated user.
func (t *TokenIssuer) Issue(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": t.issuer,
		"sub": username,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(t.expiresIn).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks a token's signature and claims and returns its subject.
func (t *TokenIssuer) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", tok.Method.Alg())
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidAuthToken, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidAuthToken
	}
	return subject, nil
}
