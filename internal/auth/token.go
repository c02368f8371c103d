package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers unknown names and wrong passwords alike
	ErrInvalidCredentials = errors.New("invalid name or password")
	// ErrInvalidRole means the roster row carries a role we cannot map
	ErrInvalidRole = errors.New("invalid role")
	// ErrTokenInvalid is returned for any token that fails verification
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimited means the client exhausted its login attempts
	ErrRateLimited = errors.New("too many login attempts")
)

type Claims struct {
	Name   string     `json:"name"`
	Role   types.Role `json:"role"`
	Teams  []string   `json:"teams"`
	Shifts []string   `json:"shifts"`
	jwt.RegisteredClaims
}

// Viewer converts the claims into the report audience
func (c *Claims) Viewer() types.Viewer {
	return types.Viewer{
		Name:   c.Name,
		Role:   c.Role,
		Teams:  c.Teams,
		Shifts: c.Shifts,
	}
}

// Verifier validates a bearer token
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for member with the already parsed role
func (i *TokenIssuer) Issue(member types.Member, role types.Role) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		Name:   member.Name,
		Role:   role,
		Teams:  member.Teams,
		Shifts: member.Shifts,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.Name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses and validates a token issued by this service
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if _, ok := types.ParseRole(string(claims.Role)); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
