package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users row. PasswordHash and ExternalID are nullable; at
// least one of them is set.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	ExternalID   *string   `bun:"external_id"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull"`
	PasswordHash *string   `bun:"password_hash"`
	ProfilePic   string    `bun:"profile_pic,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// Trip is the trips row. IDs are assigned by the database and grow
// monotonically.
type Trip struct {
	bun.BaseModel `bun:"table:trips,alias:t"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      uuid.UUID `bun:"user_id,type:uuid,notnull"`
	GeneratedAt time.Time `bun:"generated_at,notnull"`
	Destination string    `bun:"destination,notnull"`
	Month       string    `bun:"month,notnull"`
	Duration    string    `bun:"duration,notnull"`
	Interests   string    `bun:"interests,notnull"`
	TravelPlan  string    `bun:"travel_plan,notnull"`
}

// PasswordReset is the password_resets row. TokenHash is the SHA-256 of the
// issued token.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pr"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull"`
	TokenHash string    `bun:"token_hash,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
