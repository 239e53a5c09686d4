package db

import (
	"time"

	"github.com/google/uuid"
)

// Repeat is a recurring reminder: a time of day on a set of weekdays.
type Repeat struct {
	ID        uuid.UUID
	UserID    int64
	Title     string     // optional
	Time      *TimeOfDay // nil until the user enters it
	Days      Weekdays
	Saved     bool // false while the draft is under construction
	CreatedAt time.Time
}

// ToggleDay adds the day if it's absent and removes it otherwise. It reports
// whether the day was added.
func (r *Repeat) ToggleDay(day time.Weekday) bool {
	return r.Days.Toggle(day)
}

// Once is a one-shot reminder bound to a calendar date-time in a time zone.
type Once struct {
	ID        uuid.UUID
	UserID    int64
	Title     string
	At        time.Time // zero until set
	TimeZone  string    // IANA time zone identifier
	Saved     bool
	CreatedAt time.Time
}
