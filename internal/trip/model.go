package trip

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a completed, persisted itinerary. Trips are never modified after
// they are appended.
type Trip struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Destination string    `json:"destination"`
	Month       string    `json:"month"`
	Duration    string    `json:"duration"`
	Interests   []string  `json:"interests"`
	Text        string    `json:"travel_plan"`
}

// Summary is the list view of a trip.
type Summary struct {
	ID          int64     `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Destination string    `json:"destination"`
	Month       string    `json:"month"`
	Duration    string    `json:"duration"`
}

func (t Trip) Summary() Summary {
	return Summary{
		ID:          t.ID,
		GeneratedAt: t.GeneratedAt,
		Destination: t.Destination,
		Month:       t.Month,
		Duration:    t.Duration,
	}
}
