// Package token issues and verifies the stateless bearer credentials that
// carry a caller's identity and role between requests. A credential is an
// HS256 JWT; verification needs only the server secret, no state lookup.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

// Claims are the credential claims: subject is the username, Role the
// privilege level fixed at issuance.
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a credential for username. Expiry is always issuance time
// plus the fixed TTL.
func (m *Manager) Issue(username string, role models.Role) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: role,
	})
	return t.SignedString(m.secret)
}

// Verify checks signature and expiry and returns the resolved identity.
// An expired credential yields models.ErrTokenExpired; anything else that
// fails verification yields models.ErrInvalidToken.
func (m *Manager) Verify(tokenString string) (models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, models.ErrTokenExpired
		}
		return models.Identity{}, models.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return models.Identity{}, models.ErrInvalidToken
	}
	return models.Identity{Username: claims.Subject, Role: claims.Role}, nil
}
