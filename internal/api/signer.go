package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints and verifies session-bound CSRF tokens. Tokens are HMAC-signed
// JWTs so validation needs no token storage beyond the session's current
// token id.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) (*Signer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(key))
	}
	return &Signer{key: key}, nil
}

type tokenClaims struct {
	SessionID string `json:"sid"`
	TokenID   string `json:"tid"`
	jwt.RegisteredClaims
}

func (s *Signer) Sign(sessionID, tokenID string, maxAge time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		SessionID: sessionID,
		TokenID:   tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded session and
// token ids.
func (s *Signer) Verify(raw string) (sessionID, tokenID string, err error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", fmt.Errorf("token not valid")
	}
	return claims.SessionID, claims.TokenID, nil
}
