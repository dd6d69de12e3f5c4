package reset

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/cicero/internal/database"
)

// hashToken returns the hex SHA-256 of token. Records are keyed by the
// hash so the bearer value itself is never stored.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SQLStore keeps reset records in the password_resets table.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, token string, rec Record) error {
	row := &database.PasswordReset{
		UserID:    rec.UserID,
		TokenHash: hashToken(token),
		ExpiresAt: rec.ExpiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}
	return nil
}

// Consume looks the record up and deletes it in one transaction. Only the
// caller whose DELETE removed the row gets it back.
func (s *SQLStore) Consume(ctx context.Context, token string) (Record, error) {
	var rec Record
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(database.PasswordReset)
		err := tx.NewSelect().
			Model(row).
			Where("token_hash = ?", hashToken(token)).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("failed to get password reset: %w", err)
		}

		result, err := tx.NewDelete().
			Model((*database.PasswordReset)(nil)).
			Where("id = ?", row.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete password reset: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n != 1 {
			return ErrRecordNotFound
		}

		rec = Record{UserID: row.UserID, ExpiresAt: row.ExpiresAt}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// PurgeExpired deletes records that expired before the given time and
// returns how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.NewDelete().
		Model((*database.PasswordReset)(nil)).
		Where("expires_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge password resets: %w", err)
	}
	return result.RowsAffected()
}
