package stage

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

const (
	DefaultTTL = 3 * time.Minute
	sweepTick  = 30 * time.Second
)

type entry struct {
	stage    Stage
	deadline time.Time
}

// Memory is an in-process Store. Stages expire ttl after the last Put; expired
// stages are invisible to Get and are evicted by Sweep.
type Memory struct {
	mu     sync.Mutex
	clk    clock.Clock
	ttl    time.Duration
	stages map[int64]entry
	queue  *expiryQueue
}

func NewMemory(clk clock.Clock, ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Memory{
		clk:    clk,
		ttl:    ttl,
		stages: make(map[int64]entry),
		queue:  newExpiryQueue(),
	}
}

func (m *Memory) Put(_ context.Context, s Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := m.clk.Now().Add(m.ttl)
	m.stages[s.UserID] = entry{stage: s, deadline: deadline}
	heap.Push(m.queue, &expiry{usr: s.UserID, at: deadline})
	return nil
}

func (m *Memory) Get(_ context.Context, usr int64) (Stage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.stages[usr]
	if !ok {
		return Stage{}, false, nil
	}

	if m.expired(e) {
		delete(m.stages, usr)
		return Stage{}, false, nil
	}
	return e.stage, true, nil
}

func (m *Memory) Remove(_ context.Context, s Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.stages[s.UserID]
	if ok && e.stage.ReminderID == s.ReminderID {
		delete(m.stages, s.UserID)
	}
	return nil
}

func (m *Memory) expired(e entry) bool {
	return !m.clk.Now().Before(e.deadline)
}

// Sweep evicts expired stages and returns how many were evicted.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	n := 0
	for {
		e := m.queue.Peek()
		if e == nil || now.Before(e.at) {
			break
		}
		heap.Pop(m.queue)

		// the stage might have been refreshed or removed since
		cur, ok := m.stages[e.usr]
		if ok && cur.deadline.Equal(e.at) {
			delete(m.stages, e.usr)
			n++
		}
	}
	return n
}

// Len returns the number of stored stages including expired but not yet evicted
// ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stages)
}

// Run sweeps expired stages periodically until ctx is done.
func (m *Memory) Run(ctx context.Context, l *zap.SugaredLogger) {
	ticker := time.NewTicker(sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				l.Debugf("evicted %d expired stages", n)
			}
		}
	}
}
