package trip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/database/dbtest"
)

func newTrip(userID uuid.UUID, destination string) *Trip {
	return &Trip{
		UserID:      userID,
		GeneratedAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		Destination: destination,
		Month:       "April",
		Duration:    "One week",
		Interests:   []string{"History, Culture and Arts", "Food and Dining"},
		Text:        "Day 1: temples.",
	}
}

func TestAppend_AssignsIncreasingIDs(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := dbtest.InsertUser(t, db, "ada@example.com")

	first := newTrip(userID, "Kyoto")
	second := newTrip(userID, "Lisbon")
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
}

func TestListByUser_NewestFirstAndStable(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ada := dbtest.InsertUser(t, db, "ada@example.com")
	bob := dbtest.InsertUser(t, db, "bob@example.com")

	for _, d := range []string{"Kyoto", "Lisbon", "Oslo"} {
		require.NoError(t, repo.Append(ctx, newTrip(ada, d)))
	}
	require.NoError(t, repo.Append(ctx, newTrip(bob, "Cairo")))

	got, err := repo.ListByUser(ctx, ada)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Oslo", "Lisbon", "Kyoto"}, []string{got[0].Destination, got[1].Destination, got[2].Destination})
	assert.Greater(t, got[0].ID, got[1].ID)
	assert.Greater(t, got[1].ID, got[2].ID)

	again, err := repo.ListByUser(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	none, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByID_RoundTrip(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := dbtest.InsertUser(t, db, "ada@example.com")

	in := newTrip(userID, "Kyoto")
	require.NoError(t, repo.Append(ctx, in))

	got, err := repo.GetByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "Kyoto", got.Destination)
	assert.Equal(t, []string{"History, Culture and Arts", "Food and Dining"}, got.Interests)
	assert.Equal(t, "Day 1: temples.", got.Text)
	assert.True(t, in.GeneratedAt.Equal(got.GeneratedAt))
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewRepository(dbtest.New(t))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, apperr.NotFound)
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewRepository(bun.NewDB(sqlDB, pgdialect.New())), mock
}

var tripColumns = []string{"id", "user_id", "generated_at", "destination", "month", "duration", "interests", "travel_plan"}

func TestGetByID_DuplicateRowsIsIntegrityError(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(tripColumns).
		AddRow(int64(7), userID.String(), now, "Kyoto", "April", "One week", `["Food and Dining"]`, "a").
		AddRow(int64(7), userID.String(), now, "Kyoto", "April", "One week", `["Food and Dining"]`, "b")
	mock.ExpectQuery(`(?s)SELECT .* FROM "trips" AS "t" WHERE \(id = 7\) LIMIT 2`).WillReturnRows(rows)

	_, err := repo.GetByID(context.Background(), 7)
	assert.ErrorIs(t, err, apperr.Integrity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFailuresAreStoreErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset by peer")

	mock.ExpectQuery(`SELECT .* FROM "trips"`).WillReturnError(boom)
	_, err := repo.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.Store)
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(`SELECT .* FROM "trips"`).WillReturnError(boom)
	_, err = repo.ListByUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.Store)

	mock.ExpectQuery(`INSERT INTO "trips"`).WillReturnError(boom)
	err = repo.Append(context.Background(), newTrip(uuid.New(), "Kyoto"))
	assert.ErrorIs(t, err, apperr.Store)

	assert.NoError(t, mock.ExpectationsWereMet())
}
