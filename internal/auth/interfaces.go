package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenService creates and checks session tokens.
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*SessionClaims, error)
}

// ResetTokens issues and redeems password reset tokens.
type ResetTokens interface {
	Issue(ctx context.Context, userID uuid.UUID) (string, time.Time, error)
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

// Notifier delivers reset links.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, token string, expiresAt time.Time) error
}

// Identity is what an identity provider vouches for after a successful
// code exchange.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// OAuthProvider exchanges an authorization code for an Identity.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}
