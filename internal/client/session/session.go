// Package session holds the contracts for the two external collaborators
// this client consumes: the session-token provider (authentication) and the
// billing-status provider (subscription tier). Both are systems of record
// elsewhere; only their consumption side lives here.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the current bearer token. Returning
// common.ErrNoSession means the client is unauthenticated; callers degrade
// to offline/guest behavior instead of failing.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BillingSource reports the current subscription tier. Tier must always be
// read live from here, never from a cached label, because a cached value
// can lag a just-completed upgrade or downgrade.
type BillingSource interface {
	Status(ctx context.Context) (models.BillingStatus, error)
}

// Session tracks the bearer token for the lifetime of the process. The
// token itself is issued by an external provider; Set is called by whatever
// surface obtains it (the CLI login command here).
type Session struct {
	token     string
	accountID string
	tier      models.Tier
	now       func() time.Time
}

func New() *Session {
	return &Session{now: time.Now}
}

// Set installs a bearer token. The token is parsed without signature
// verification (verification is the backend's job) to extract the account
// id and reject tokens that are already expired.
func (s *Session) Set(token string) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if exp.Time.Before(s.now()) {
			return common.ErrTokenExpired
		}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	s.token = token
	s.accountID = sub
	s.tier = models.TierFree
	if tier, ok := claims["tier"].(string); ok && tier != "" {
		s.tier = models.Tier(tier)
	}
	return nil
}

// Clear drops the token, returning the client to guest mode.
func (s *Session) Clear() {
	s.token = ""
	s.accountID = ""
	s.tier = ""
}

// Authenticated reports whether a usable token is present.
func (s *Session) Authenticated() bool {
	return s.token != ""
}

// AccountID returns the subject claim of the current token, or "".
func (s *Session) AccountID() string {
	return s.accountID
}

// Token implements TokenSource.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", common.ErrNoSession
	}
	return s.token, nil
}

// TokenBilling is a minimal BillingSource that reads the subscription tier
// from the "tier" claim of the session token. A real deployment would point
// the client at the billing system instead; the contract is the same.
type TokenBilling struct {
	sess *Session
}

func NewTokenBilling(sess *Session) *TokenBilling {
	return &TokenBilling{sess: sess}
}

func (b *TokenBilling) Status(ctx context.Context) (models.BillingStatus, error) {
	if !b.sess.Authenticated() {
		return models.BillingStatus{Tier: models.TierGuest}, nil
	}
	return models.BillingStatus{Tier: b.sess.tier}, nil
}
