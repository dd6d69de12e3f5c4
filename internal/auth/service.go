package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/password"
	"github.com/redmonkez12/cicero/internal/user"
)

const (
	msgInvalidLogin      = "invalid email and/or password"
	msgPasswordsMismatch = "must provide two matching passwords"
	msgEmailTaken        = "an account with this email already exists"
	msgGoogleUnverified  = "User email not available or not verified by Google."
	msgIdentityConflict  = "this email is linked to a different Google account"
	notifyTimeout        = 30 * time.Second
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,7}\b`)

// Service handles account and session business logic.
type Service struct {
	users           *user.Repository
	sessions        TokenService
	resets          ResetTokens
	notifier        Notifier
	google          OAuthProvider
	logger          *logging.Logger
	sessionDuration time.Duration
	// goAsync runs fire-and-forget work such as sending mail.
	goAsync func(func())
}

func NewService(
	users *user.Repository,
	sessions TokenService,
	resets ResetTokens,
	notifier Notifier,
	google OAuthProvider,
	logger *logging.Logger,
	sessionDuration time.Duration,
) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		users:           users,
		sessions:        sessions,
		resets:          resets,
		notifier:        notifier,
		google:          google,
		logger:          logger,
		sessionDuration: sessionDuration,
		goAsync:         func(f func()) { go f() },
	}
}

// Session is a signed-in user and the token that proves it.
type Session struct {
	Token     string     `json:"access_token"`
	TokenType string     `json:"token_type"`
	ExpiresIn int64      `json:"expires_in"`
	User      *user.User `json:"-"`
}

type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// Register creates a local account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "must provide name")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	switch _, err := s.users.GetByEmail(ctx, email); {
	case err == nil:
		return nil, apperr.New(apperr.KindValidation, msgEmailTaken)
	case !errors.Is(err, user.ErrNotFound):
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}

	if in.Password == "" || in.Password != in.Confirmation {
		return nil, apperr.New(apperr.KindValidation, msgPasswordsMismatch)
	}
	if err := password.Check(in.Password).Err(); err != nil {
		return nil, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", fmt.Errorf("failed to hash password: %w", err))
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Name:    name,
		Email:   email,
		Account: user.LocalAccount{Hash: hash},
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, apperr.New(apperr.KindValidation, msgEmailTaken)
		}
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}

	return s.startSession(u)
}

// Login checks an email and password. Unknown emails, accounts without a
// password and wrong passwords all fail the same way.
func (s *Service) Login(ctx context.Context, email, pw string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.KindValidation, "must provide email")
	}
	if pw == "" {
		return nil, apperr.New(apperr.KindValidation, "must provide password")
	}

	invalid := apperr.New(apperr.KindAuth, msgInvalidLogin).WithStatus(http.StatusForbidden)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}

	hash, ok := u.Account.PasswordHash()
	if !ok || !password.Verify(hash, pw) {
		return nil, invalid
	}

	return s.startSession(u)
}

// GoogleEnabled reports whether federated sign-in is configured.
func (s *Service) GoogleEnabled() bool {
	return s.google != nil
}

func (s *Service) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state)
}

// LoginWithGoogle signs in through Google. A known Google subject signs
// in directly; otherwise the identity is bound to the account with the same
// email, or a new federated account is created.
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*Session, error) {
	if s.google == nil {
		return nil, apperr.New(apperr.KindNotFound, "google sign-in is not configured")
	}

	id, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "google sign-in failed", err)
	}
	if !id.EmailVerified || id.Email == "" || id.Subject == "" {
		return nil, apperr.New(apperr.KindAuth, msgGoogleUnverified)
	}

	logger := s.logger.WithFields(map[string]any{"external_id": id.Subject})

	u, err := s.users.GetByExternalID(ctx, id.Subject)
	if err == nil {
		return s.startSession(u)
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}

	email := normalizeEmail(id.Email)
	u, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if sub, ok := u.Account.ExternalID(); ok && sub != id.Subject {
			logger.Warn("email already bound to another google identity", "user_id", u.ID)
			return nil, apperr.New(apperr.KindAuth, msgIdentityConflict)
		}
		if err := s.users.BindExternalID(ctx, u.ID, id.Subject); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "", err)
		}
		u.Account = user.WithExternalID(u.Account, id.Subject)
		logger.Info("google identity bound to existing account", "user_id", u.ID)
	case errors.Is(err, user.ErrNotFound):
		name := id.Name
		if name == "" {
			name = email
		}
		u, err = s.users.Create(ctx, user.NewUser{
			Name:       name,
			Email:      email,
			ProfilePic: id.Picture,
			Account:    user.FederatedAccount{Subject: id.Subject},
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStore, "", err)
		}
		logger.Info("account created from google identity", "user_id", u.ID)
	default:
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}

	return s.startSession(u)
}

// CurrentUser loads the user behind a session.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.New(apperr.KindAuth, "")
		}
		return nil, apperr.Wrap(apperr.KindStore, "", err)
	}
	return u, nil
}

// RequestPasswordReset issues a reset token for email and mails it in the
// background. It returns nil whether or not the account exists; only a
// failed account lookup is reported.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return apperr.Wrap(apperr.KindStore, "", err)
	}

	// Past this point the account exists, so failures stay out of the response.
	token, expiresAt, err := s.resets.Issue(ctx, u.ID)
	if err != nil {
		s.logger.Error("failed to issue password reset token", "user_id", u.ID, "error", err.Error())
		return nil
	}

	s.goAsync(func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.SendPasswordResetEmail(notifyCtx, u.Email, token, expiresAt); err != nil {
			s.logger.Warn("failed to send password reset email", "user_id", u.ID, "error", err.Error())
		}
	})

	return nil
}

type ResetPasswordInput struct {
	Token        string `json:"token"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// ResetPassword sets a new password using a reset token. The new password
// is checked before the token is redeemed, so a rejected password leaves
// the token usable.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.Password == "" || in.Password != in.Confirmation {
		return apperr.New(apperr.KindValidation, msgPasswordsMismatch)
	}
	if err := password.Check(in.Password).Err(); err != nil {
		return err
	}

	userID, err := s.resets.Validate(ctx, in.Token)
	if err != nil {
		return err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "", fmt.Errorf("failed to hash password: %w", err))
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.New(apperr.KindInvalidToken, "")
		}
		return apperr.Wrap(apperr.KindStore, "", err)
	}

	s.logger.Info("password reset", "user_id", userID)
	return nil
}

func (s *Service) startSession(u *user.User) (*Session, error) {
	token, err := s.sessions.CreateToken(u.ID, u.Email, s.sessionDuration)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "", fmt.Errorf("failed to create session token: %w", err))
	}
	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.sessionDuration.Seconds()),
		User:      u,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.New(apperr.KindValidation, "must provide email")
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return apperr.New(apperr.KindValidation, "not a valid email")
	}
	return nil
}
