package trip

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/database"
)

const msgTripNotFound = "trip not found"

// Repository is the append-only trip history.
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Append stores t and sets its ID. IDs increase monotonically.
func (r *Repository) Append(ctx context.Context, t *Trip) error {
	row, err := toRow(t)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "", err)
	}

	_, err = r.db.NewInsert().
		Model(row).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, "", fmt.Errorf("failed to append trip: %w", err))
	}

	t.ID = row.ID
	return nil
}

// ListByUser returns the user's trips, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Trip, error) {
	var rows []database.Trip
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "", fmt.Errorf("failed to list trips: %w", err))
	}

	trips := make([]Trip, 0, len(rows))
	for i := range rows {
		t, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, nil
}

// GetByID returns the trip with the given id. More than one matching row
// is reported as an integrity error rather than picking one.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Trip, error) {
	var rows []database.Trip
	err := r.db.NewSelect().
		Model(&rows).
		Where("id = ?", id).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, "", fmt.Errorf("failed to get trip: %w", err))
	}

	switch len(rows) {
	case 0:
		return nil, apperr.New(apperr.KindNotFound, msgTripNotFound)
	case 1:
		return fromRow(&rows[0])
	default:
		return nil, apperr.Wrap(apperr.KindIntegrity, "", fmt.Errorf("trip id %d matches %d rows", id, len(rows)))
	}
}

func toRow(t *Trip) (*database.Trip, error) {
	interests, err := json.Marshal(t.Interests)
	if err != nil {
		return nil, fmt.Errorf("encode interests: %w", err)
	}
	return &database.Trip{
		UserID:      t.UserID,
		GeneratedAt: t.GeneratedAt.UTC(),
		Destination: t.Destination,
		Month:       t.Month,
		Duration:    t.Duration,
		Interests:   string(interests),
		TravelPlan:  t.Text,
	}, nil
}

func fromRow(row *database.Trip) (*Trip, error) {
	var interests []string
	if row.Interests != "" {
		if err := json.Unmarshal([]byte(row.Interests), &interests); err != nil {
			return nil, apperr.Wrap(apperr.KindIntegrity, "", fmt.Errorf("trip %d interests: %w", row.ID, err))
		}
	}
	return &Trip{
		ID:          row.ID,
		UserID:      row.UserID,
		GeneratedAt: row.GeneratedAt,
		Destination: row.Destination,
		Month:       row.Month,
		Duration:    row.Duration,
		Interests:   interests,
		Text:        row.TravelPlan,
	}, nil
}
