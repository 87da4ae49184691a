package queue

import "sync"

// roomLocks hands out one mutex per room. Every mutating operation holds its
// room's lock for the read-recompute-persist cycle, so concurrent edits to
// the same room serialize while different rooms proceed independently.
type roomLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{m: make(map[int64]*sync.Mutex)}
}

func (l *roomLocks) get(roomID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.m[roomID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[roomID] = mu
	}
	return mu
}
