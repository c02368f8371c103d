package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/roster"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// compared against when the name is unknown so both paths cost the same
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// MemberLookup finds roster members by name
type MemberLookup interface {
	Lookup(name string) (types.Member, error)
}

// Authenticator checks roster credentials and issues session tokens
type Authenticator struct {
	members MemberLookup
	issuer  *TokenIssuer
	limiter *IPLimiter
	logger  zerolog.Logger
}

// NewAuthenticator creates an Authenticator; limiter may be nil
func NewAuthenticator(members MemberLookup, issuer *TokenIssuer, limiter *IPLimiter, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		members: members,
		issuer:  issuer,
		limiter: limiter,
		logger:  logger.With().Str("component", "login").Logger(),
	}
}

// Login verifies name and password for a client at ip
func (a *Authenticator) Login(name, password, ip string) (string, *Claims, error) {
	m := metrics.Get()

	if a.limiter != nil && !a.limiter.Allow(ip) {
		m.RecordLogin("rate_limited")
		return "", nil, ErrRateLimited
	}

	member, err := a.members.Lookup(strings.TrimSpace(name))
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		m.RecordLogin("failed")
		if errors.Is(err, roster.ErrMemberNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !checkPassword(member.PasswordHash, password) {
		m.RecordLogin("failed")
		return "", nil, ErrInvalidCredentials
	}

	role, ok := member.Role()
	if !ok {
		a.logger.Warn().Str("user", member.Name).Str("role", member.RawRole).Msg("roster role not recognised")
		m.RecordLogin("invalid_role")
		return "", nil, ErrInvalidRole
	}

	token, claims, err := a.issuer.Issue(member, role)
	if err != nil {
		m.RecordLogin("error")
		return "", nil, err
	}
	m.RecordLogin("success")
	return token, claims, nil
}

// checkPassword accepts bcrypt hashes and legacy plaintext cells
func checkPassword(stored, password string) bool {
	if stored == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}
