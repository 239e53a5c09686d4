package db

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
)

// Memory is an in-process Store. It's used for local runs and tests; the data
// is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	clk     clock.Clock
	seq     uint64
	repeats map[uuid.UUID]memRepeat
	onces   map[uuid.UUID]memOnce
}

type memRepeat struct {
	Repeat
	seq uint64
}

type memOnce struct {
	Once
	seq uint64
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		clk:     clk,
		repeats: make(map[uuid.UUID]memRepeat),
		onces:   make(map[uuid.UUID]memOnce),
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateRepeat(_ context.Context, usr int64) (*Repeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	r := Repeat{ID: uuid.New(), UserID: usr, CreatedAt: m.clk.Now().UTC()}
	m.repeats[r.ID] = memRepeat{Repeat: r, seq: m.seq}
	return &r, nil
}

func (m *Memory) GetRepeat(_ context.Context, id uuid.UUID) (*Repeat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.repeats[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := copyRepeat(stored.Repeat)
	return &r, nil
}

func (m *Memory) UpdateRepeat(_ context.Context, r *Repeat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.repeats[r.ID]
	if !ok {
		return ErrNotFound
	}

	upd := copyRepeat(*r)
	upd.UserID = stored.UserID
	upd.CreatedAt = stored.CreatedAt
	upd.Saved = stored.Saved || r.Saved
	m.repeats[r.ID] = memRepeat{Repeat: upd, seq: stored.seq}
	return nil
}

func (m *Memory) RemoveRepeat(_ context.Context, r *Repeat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.repeats[r.ID]; !ok {
		return ErrNotFound
	}
	delete(m.repeats, r.ID)
	return nil
}

func (m *Memory) ListRepeats(_ context.Context, usr int64) ([]Repeat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []memRepeat
	for _, r := range m.repeats {
		if r.UserID == usr && r.Saved {
			found = append(found, r)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	res := make([]Repeat, len(found))
	for i, r := range found {
		res[i] = copyRepeat(r.Repeat)
	}
	return res, nil
}

func (m *Memory) CreateOnce(_ context.Context, usr int64) (*Once, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	o := Once{ID: uuid.New(), UserID: usr, TimeZone: "UTC", CreatedAt: m.clk.Now().UTC()}
	m.onces[o.ID] = memOnce{Once: o, seq: m.seq}
	return &o, nil
}

func (m *Memory) GetOnce(_ context.Context, id uuid.UUID) (*Once, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.onces[id]
	if !ok {
		return nil, ErrNotFound
	}
	o := stored.Once
	return &o, nil
}

func (m *Memory) UpdateOnce(_ context.Context, o *Once) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.onces[o.ID]
	if !ok {
		return ErrNotFound
	}

	upd := *o
	upd.UserID = stored.UserID
	upd.CreatedAt = stored.CreatedAt
	upd.Saved = stored.Saved || o.Saved
	m.onces[o.ID] = memOnce{Once: upd, seq: stored.seq}
	return nil
}

func (m *Memory) RemoveOnce(_ context.Context, o *Once) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.onces[o.ID]; !ok {
		return ErrNotFound
	}
	delete(m.onces, o.ID)
	return nil
}

func (m *Memory) ListOnces(_ context.Context, usr int64) ([]Once, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []memOnce
	for _, o := range m.onces {
		if o.UserID == usr && o.Saved {
			found = append(found, o)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	res := make([]Once, len(found))
	for i, o := range found {
		res[i] = o.Once
	}
	return res, nil
}

// copyRepeat detaches the time pointer so callers can't mutate stored state.
func copyRepeat(r Repeat) Repeat {
	if r.Time != nil {
		t := *r.Time
		r.Time = &t
	}
	return r
}
