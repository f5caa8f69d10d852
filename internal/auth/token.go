// Package auth validates the bearer credentials issued by the account service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"collab-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a validated credential resolves to.
type Identity struct {
	UserID string      `json:"user_id"`
	TeamID string      `json:"team_id"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name,omitempty"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// Claims is the JWT payload: sub is the user id.
type Claims struct {
	Team string `json:"team"`
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens signed with a shared secret.
type Validator struct {
	secret []byte
	parser *jwt.Parser
}

// NewValidator constructs a Validator.
func NewValidator(secret string) *Validator {
	return &Validator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// ValidateToken verifies the token and returns the caller identity.
func (v *Validator) ValidateToken(_ context.Context, token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Team == "" {
		return Identity{}, fmt.Errorf("%w: missing subject or team", ErrInvalidToken)
	}
	role := models.RoleMember
	if models.Role(claims.Role) == models.RoleAdmin {
		role = models.RoleAdmin
	}
	return Identity{UserID: claims.Subject, TeamID: claims.Team, Role: role, Name: claims.Name}, nil
}

// Issue signs a token for the identity. Tokens are normally minted by the
// account service; this is used by tests and local tooling.
func (v *Validator) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Team: id.TeamID,
		Role: string(id.Role),
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
