package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/cicero/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrNoCredential   = errors.New("user row has neither password nor external id")
)

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// NewUser describes an account to create.
type NewUser struct {
	Name       string
	Email      string
	ProfilePic string
	Account    Account
}

// Create inserts a new user. A taken email returns ErrDuplicateEmail.
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	if nu.Account == nil {
		return nil, ErrNoCredential
	}

	now := time.Now().UTC()
	dbUser := &database.User{
		ID:         uuid.New(),
		Name:       nu.Name,
		Email:      nu.Email,
		ProfilePic: nu.ProfilePic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	setAccount(dbUser, nu.Account)

	_, err := r.db.NewInsert().
		Model(dbUser).
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser)
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getBy(ctx, "id = ?", id)
}

// GetByExternalID retrieves a user by identity-provider subject
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.getBy(ctx, "external_id = ?", externalID)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser)
}

// BindExternalID attaches an identity-provider subject to an existing user.
func (r *Repository) BindExternalID(ctx context.Context, userID uuid.UUID, externalID string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("external_id = ?", externalID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to bind external id: %w", err)
	}

	return checkAffected(result)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func setAccount(dbu *database.User, a Account) {
	if hash, ok := a.PasswordHash(); ok {
		dbu.PasswordHash = &hash
	}
	if sub, ok := a.ExternalID(); ok {
		dbu.ExternalID = &sub
	}
}

func accountFromRow(dbu *database.User) (Account, error) {
	switch {
	case dbu.PasswordHash != nil && dbu.ExternalID != nil:
		return HybridAccount{Hash: *dbu.PasswordHash, Subject: *dbu.ExternalID}, nil
	case dbu.PasswordHash != nil:
		return LocalAccount{Hash: *dbu.PasswordHash}, nil
	case dbu.ExternalID != nil:
		return FederatedAccount{Subject: *dbu.ExternalID}, nil
	default:
		return nil, ErrNoCredential
	}
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) (*User, error) {
	account, err := accountFromRow(dbu)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", dbu.ID, err)
	}
	return &User{
		ID:         dbu.ID,
		Name:       dbu.Name,
		Email:      dbu.Email,
		ProfilePic: dbu.ProfilePic,
		Account:    account,
		CreatedAt:  dbu.CreatedAt,
		UpdatedAt:  dbu.UpdatedAt,
	}, nil
}
