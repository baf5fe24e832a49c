package scheduler

import "sync"

// ticketLocks serializes pass work per ticket within this process. Across
// processes the optimistic version on the ticket row is the guard; the keyed
// mutex just avoids burning conflict retries between our own passes.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the per-ticket lock is held and returns the release
// function. Entries are reference counted so the map does not grow with the
// ticket population.
func (l *ticketLocks) acquire(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[ticketID]
	if !ok {
		entry = &lockEntry{}
		l.locks[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, ticketID)
		}
		l.mu.Unlock()
	}
}
