package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a reminder with the given ID doesn't exist.
var ErrNotFound = errors.New("reminder not found")

// RepeatStore keeps recurring reminders.
//
// Update and Remove expect the reminder to be obtained from CreateRepeat or
// GetRepeat first; unknown IDs result in ErrNotFound. Once saved, a reminder
// stays saved: Update never resets the flag.
type RepeatStore interface {
	CreateRepeat(ctx context.Context, usr int64) (*Repeat, error)
	GetRepeat(ctx context.Context, id uuid.UUID) (*Repeat, error)
	UpdateRepeat(ctx context.Context, r *Repeat) error
	RemoveRepeat(ctx context.Context, r *Repeat) error
	// ListRepeats returns saved reminders of the user in creation order.
	ListRepeats(ctx context.Context, usr int64) ([]Repeat, error)
}

// OnceStore keeps one-shot reminders. The contract mirrors RepeatStore.
type OnceStore interface {
	CreateOnce(ctx context.Context, usr int64) (*Once, error)
	GetOnce(ctx context.Context, id uuid.UUID) (*Once, error)
	UpdateOnce(ctx context.Context, o *Once) error
	RemoveOnce(ctx context.Context, o *Once) error
	ListOnces(ctx context.Context, usr int64) ([]Once, error)
}

// Store is the whole reminder storage.
type Store interface {
	RepeatStore
	OnceStore
	Close()
}
