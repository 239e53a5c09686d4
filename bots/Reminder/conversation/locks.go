package conversation

import "sync"

// userLocks serializes handling of events of the same user. Locks of idle
// users are dropped.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

// lock blocks until the user's lock is acquired and returns the function
// releasing it.
func (u *userLocks) lock(usr int64) func() {
	u.mu.Lock()
	l, ok := u.locks[usr]
	if !ok {
		l = &userLock{}
		u.locks[usr] = l
	}
	l.refs++
	u.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, usr)
		}
		u.mu.Unlock()
	}
}

func (u *userLocks) len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.locks)
}
