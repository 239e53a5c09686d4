package stage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Step is the piece of the reminder the bot waits for.
type Step int

const (
	StepTitle Step = iota
	StepTime
	StepDays
)

func (s Step) String() string {
	switch s {
	case StepTitle:
		return "title"
	case StepTime:
		return "time"
	case StepDays:
		return "days"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Stage binds a user to the draft reminder being created.
type Stage struct {
	UserID     int64
	ReminderID uuid.UUID
	Step       Step
}

// Store keeps at most one stage per user.
type Store interface {
	// Put replaces the user's stage and resets its expiry.
	Put(ctx context.Context, s Stage) error
	// Get returns the user's stage; the flag is false if there's none or it
	// has expired.
	Get(ctx context.Context, usr int64) (Stage, bool, error)
	// Remove deletes the stage if it's still bound to the same reminder.
	// Absent stages are ignored.
	Remove(ctx context.Context, s Stage) error
}
