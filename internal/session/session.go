// Package session issues and validates the signed, stateless session tokens
// that stand in for server-side session storage. Expiry is the only
// termination mechanism; a future revocation list only has to touch this
// package because no caller inspects tokens directly.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cottageplayer/backend/internal/models"
)

// ErrInvalidSession covers forged, malformed and expired tokens alike; callers
// treat all of them as "not authenticated", never as a partial identity.
var ErrInvalidSession = errors.New("invalid or expired session")

type Claims struct {
	UserID uuid.UUID       `json:"userID"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type Status struct {
	Authenticated bool             `json:"authenticated"`
	Email         string           `json:"email,omitempty"`
	Name          string           `json:"name,omitempty"`
	Role          *models.UserRole `json:"role,omitempty"`
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

// Status answers the client-side probe without exposing why a token failed.
func (m *Manager) Status(tokenString string) Status {
	claims, err := m.Validate(tokenString)
	if err != nil {
		return Status{Authenticated: false}
	}
	role := claims.Role
	return Status{Authenticated: true, Email: claims.Email, Role: &role}
}
