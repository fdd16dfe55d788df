// Package token verifies and mints the HS256 bearer tokens that authenticate
// API callers. Verification is stateless: everything needed to build an
// identity is inside the signed claims.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

// defaultLeeway absorbs small clock skew between issuer and verifier.
const defaultLeeway = 30 * time.Second

// claims is jwt.RegisteredClaims plus the alternate spellings some issuers
// use for the subject. Subject resolution prefers the registered claim.
type claims struct {
	jwt.RegisteredClaims
	UserID      string `json:"user_id,omitempty"`
	UserIDCamel string `json:"userId,omitempty"`
	LegacyID    string `json:"id,omitempty"`
}

func (c *claims) subject() string {
	for _, s := range []string{c.Subject, c.UserID, c.UserIDCamel, c.LegacyID} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Verifier checks raw bearer credentials and extracts the caller identity.
type Verifier struct {
	key    []byte
	leeway time.Duration
}

// NewVerifier returns a Verifier for the given HMAC key.
func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key, leeway: defaultLeeway}
}

// Verify parses and validates a raw token string and returns the identity it
// asserts. A leading "Bearer " prefix is tolerated. Any failure (malformed,
// bad signature, wrong algorithm, expired, missing exp, empty subject) is
// reported as errs.ErrUnauthenticated; callers never learn which check failed.
func (v *Verifier) Verify(raw string) (model.Identity, error) {
	tok := strings.TrimSpace(raw)
	if len(tok) >= 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	if tok == "" {
		return model.Identity{}, fmt.Errorf("%w: empty token", errs.ErrUnauthenticated)
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithLeeway(v.leeway), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Identity{}, fmt.Errorf("%w: invalid or expired token", errs.ErrUnauthenticated)
	}

	sub := c.subject()
	if sub == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", errs.ErrUnauthenticated)
	}
	return model.Identity{Subject: sub, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Issue creates a signed HS256 token for the given subject, expiring after
// ttl. The server never issues credentials; this exists for tests and the
// CLI's local-dev mint command.
func Issue(key []byte, subject string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	// the exp claim is serialized at second precision; return the same instant
	exp := now.Add(ttl).Truncate(time.Second)
	c := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	return signed, exp, err
}
