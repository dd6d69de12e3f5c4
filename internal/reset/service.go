// Package reset issues and redeems single-use password reset tokens.
//
// A token is an HS256-signed JWT carrying the user id and an expiry two
// hours after issuance. Every issued token also has a server-side record;
// redeeming a token removes that record atomically, so a token can be
// redeemed at most once even when two requests race.
package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/cicero/internal/apperr"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 2 * time.Hour

const purposePasswordReset = "password_reset"

// Outcomes reported to Metrics.ResetTokenRedeemed.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeExpired = "expired"
	OutcomeError   = "error"
)

// Record is the server-side half of an issued token.
type Record struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// ErrRecordNotFound is returned by Store.Consume when no record matches.
var ErrRecordNotFound = errors.New("reset record not found")

// Store persists reset records.
type Store interface {
	Save(ctx context.Context, token string, rec Record) error
	// Consume removes the record for token and returns it. Exactly one
	// caller wins for a given token; the others get ErrRecordNotFound.
	Consume(ctx context.Context, token string) (Record, error)
}

// Metrics observes token activity.
type Metrics interface {
	ResetTokenIssued()
	ResetTokenRedeemed(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ResetTokenIssued()         {}
func (noopMetrics) ResetTokenRedeemed(string) {}

type Config struct {
	Secret []byte
	// TTL defaults to TokenTTL.
	TTL time.Duration
	// Now defaults to time.Now.
	Now     func() time.Time
	Metrics Metrics
}

type claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"pur"`
}

type Service struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	store   Store
	metrics Metrics
}

func NewService(store Store, cfg Config) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("reset secret must be at least 32 bytes, got %d", len(cfg.Secret))
	}
	s := &Service{
		secret:  cfg.Secret,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		store:   store,
		metrics: cfg.Metrics,
	}
	if s.ttl <= 0 {
		s.ttl = TokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s, nil
}

// Issue signs a token for userID and stores its record.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Purpose: purposePasswordReset,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindInternal, "", fmt.Errorf("sign reset token: %w", err))
	}

	expiresAt := c.ExpiresAt.Time
	if err := s.store.Save(ctx, token, Record{UserID: userID, ExpiresAt: expiresAt}); err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.KindStore, "", fmt.Errorf("save reset record: %w", err))
	}

	s.metrics.ResetTokenIssued()
	return token, expiresAt, nil
}

// Validate redeems token and returns the user it was issued for. The
// record is consumed before the expiry check, so an expired token cannot
// be retried either.
func (s *Service) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	userID, err := s.validate(ctx, token)
	switch {
	case err == nil:
		s.metrics.ResetTokenRedeemed(OutcomeSuccess)
	case errors.Is(err, apperr.InvalidToken):
		s.metrics.ResetTokenRedeemed(OutcomeInvalid)
	case errors.Is(err, apperr.ExpiredToken):
		s.metrics.ResetTokenRedeemed(OutcomeExpired)
	default:
		s.metrics.ResetTokenRedeemed(OutcomeError)
	}
	return userID, err
}

func (s *Service) validate(ctx context.Context, token string) (uuid.UUID, error) {
	c, err := s.parse(token)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidToken, "", err)
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidToken, "", fmt.Errorf("subject: %w", err))
	}

	rec, err := s.store.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return uuid.Nil, apperr.Wrap(apperr.KindInvalidToken, "", err)
		}
		return uuid.Nil, apperr.Wrap(apperr.KindStore, "", fmt.Errorf("consume reset record: %w", err))
	}

	if !s.now().Before(c.ExpiresAt.Time) {
		return uuid.Nil, apperr.New(apperr.KindExpiredToken, "")
	}

	if rec.UserID != userID {
		return uuid.Nil, apperr.Wrap(apperr.KindInvalidToken, "", errors.New("record belongs to another user"))
	}

	return userID, nil
}

// parse checks the signature and shape of token. Expiry is checked by the
// caller against the injected clock, after the record is consumed.
func (s *Service) parse(token string) (*claims, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token not valid")
	}
	if c.Purpose != purposePasswordReset {
		return nil, fmt.Errorf("unexpected purpose %q", c.Purpose)
	}
	if c.Subject == "" || c.ExpiresAt == nil {
		return nil, errors.New("missing subject or expiry")
	}
	return c, nil
}
