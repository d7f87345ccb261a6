package reminder

import "time"

// Reminder kinds. Each person carries at most one tracking row per kind.
const (
	KindRSVP       = "RSVP"
	KindInfo       = "INFO"
	KindHotel      = "HOTEL"
	KindHotelFinal = "HOTEL_FINAL"
)

// Kinds lists the escalation kinds in the order a full run processes them.
// KindHotelFinal is not in the list: it is only ever reached by escalating
// a capped KindHotel tracker.
var Kinds = []string{KindRSVP, KindInfo, KindHotel}

// Tracking counts how many reminders of one kind a person has received.
// CountSent never exceeds MaxAllowed and never decreases.
type Tracking struct {
	ID         int        `json:"id" db:"id"`
	PersonID   int        `json:"person_id" db:"person_id"`
	Kind       string     `json:"kind" db:"kind"`
	CountSent  int        `json:"count_sent" db:"count_sent"`
	LastSentAt *time.Time `json:"last_sent_at" db:"last_sent_at"` // UTC, nil until first send
	MaxAllowed int        `json:"max_allowed" db:"max_allowed"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Capped reports whether this tracker has used up its allowance.
func (t Tracking) Capped() bool { return t.CountSent >= t.MaxAllowed }

// DueSince reports whether enough time has passed since the last send.
// A tracker that never sent is always due.
func (t Tracking) DueSince(now time.Time, interval time.Duration) bool {
	if t.LastSentAt == nil {
		return true
	}
	return now.Sub(*t.LastSentAt) >= interval
}

type Repository interface {
	// GetOrCreateTracking returns the person's tracker for kind, creating
	// a zero-count one with the given allowance on first touch.
	GetOrCreateTracking(personID int, kind string, maxAllowed int) (Tracking, error)
	UpdateTracking(t Tracking) (Tracking, error)
	QueryTrackings(personID int) ([]Tracking, error)
}
