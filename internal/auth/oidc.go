package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Group paths carrying roster scope in the identity provider
const (
	teamGroupPrefix  = "/teams/"
	shiftGroupPrefix = "/shifts/"
)

// OIDCVerifier verifies tokens signed by an external OIDC provider
type OIDCVerifier struct {
	issuerURL string
	logger    zerolog.Logger

	mu         sync.RWMutex
	jwks       keyfunc.Keyfunc
	lastUpdate time.Time
}

// NewOIDCVerifier fetches the issuer's JWKS (Keycloak layout)
func NewOIDCVerifier(issuerURL string, logger zerolog.Logger) (*OIDCVerifier, error) {
	v := &OIDCVerifier{
		issuerURL: issuerURL,
		logger:    logger.With().Str("component", "oidc").Logger(),
	}
	if err := v.refresh(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *OIDCVerifier) refresh() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	jwksURL := strings.TrimSuffix(v.issuerURL, "/") + "/protocol/openid-connect/certs"
	v.logger.Info().Str("url", jwksURL).Msg("fetching JWKS")

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}
	v.jwks = k
	v.lastUpdate = time.Now()
	return nil
}

// Verify checks the signature against the JWKS and maps the claims
func (v *OIDCVerifier) Verify(tokenString string) (*Claims, error) {
	v.mu.RLock()
	jwks := v.jwks
	v.mu.RUnlock()
	if jwks == nil {
		return nil, fmt.Errorf("%w: JWKS not available", ErrTokenInvalid)
	}

	token, err := jwt.Parse(tokenString, jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
		jwt.WithIssuer(v.issuerURL))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrTokenInvalid)
	}
	return claimsFromMap(mapClaims)
}

// claimsFromMap maps provider claims onto session claims
func claimsFromMap(mapClaims jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}

	if name, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = name
	} else if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	role, ok := roleFromMapClaims(mapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: no usable role", ErrTokenInvalid)
	}
	claims.Role = role

	groups := stringList(mapClaims["groups"])
	claims.Teams = groupValues(groups, teamGroupPrefix)
	claims.Shifts = groupValues(groups, shiftGroupPrefix)
	return claims, nil
}

// roleFromMapClaims picks the most privileged realm role
func roleFromMapClaims(mapClaims jwt.MapClaims) (types.Role, bool) {
	realmAccess, ok := mapClaims["realm_access"].(map[string]any)
	if !ok {
		return "", false
	}
	roles := stringList(realmAccess["roles"])

	for _, priority := range []types.Role{types.RoleAdmin, types.RoleTeamManager, types.RoleSupervisor, types.RoleExpert} {
		for _, r := range roles {
			if parsed, ok := types.ParseRole(r); ok && parsed == priority {
				return parsed, true
			}
		}
	}
	return "", false
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// groupValues extracts names from group paths like /teams/Sales
func groupValues(groups []string, prefix string) []string {
	out := []string{}
	for _, g := range groups {
		if !strings.HasPrefix(g, prefix) {
			continue
		}
		v := strings.TrimPrefix(g, prefix)
		if idx := strings.Index(v, "/"); idx > 0 {
			v = v[:idx]
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
