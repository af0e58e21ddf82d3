package importer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgersift/ledgersift/internal/model"
)

// DefaultTTL is how long a pending import survives without being confirmed
// or cancelled.
const DefaultTTL = 30 * time.Minute

// Clock abstracts time for testability.
type Clock func() time.Time

// Registry holds in-flight pending imports keyed by upload id. Entries live
// only in process memory; a restart loses them by design. Per-id locks
// serialize confirm and cancel so the loser of a race observes not-found
// instead of operating on a half-finalized entry.
type Registry struct {
	clock   Clock
	entries map[string]*model.PendingImport
	locks   map[string]*entryLock
	ttl     time.Duration
	mu      sync.Mutex
}

// entryLock is a per-upload-id mutex with a holder count. The count keeps the
// lock in the map while any caller holds or waits on it, so removing an entry
// never hands a second caller a fresh mutex for the same id.
type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates a registry with the given clock and entry TTL.
func NewRegistry(clock Clock, ttl time.Duration) *Registry {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]*model.PendingImport),
		locks:   make(map[string]*entryLock),
	}
}

// Put stores a pending import, stamping its creation and expiry times.
func (r *Registry) Put(p *model.PendingImport) {
	now := r.clock()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.ID] = p
}

// Get returns the pending import for an upload id. Entries past their TTL
// are treated as absent and removed.
func (r *Registry) Get(id string) (*model.PendingImport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	if p.Expired(r.clock()) {
		delete(r.entries, id)
		r.dropIdleLock(id)
		return nil, false
	}
	return p, true
}

// Delete removes a pending import. Deleting an absent id is a no-op so the
// terminal transitions stay idempotent.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	r.dropIdleLock(id)
}

// dropIdleLock removes the per-id lock only when no caller holds or waits on
// it. Held locks are released and cleaned up by WithLock itself. Caller must
// hold r.mu.
func (r *Registry) dropIdleLock(id string) {
	if l, ok := r.locks[id]; ok && l.refs == 0 {
		delete(r.locks, id)
	}
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// WithLock runs fn while holding the per-upload-id lock. The lock survives
// entry removal for as long as anyone holds or waits on it; the last caller
// out discards it once the entry is gone.
func (r *Registry) WithLock(id string, fn func() error) error {
	r.mu.Lock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &entryLock{}
		r.locks[id] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	err := fn()
	lock.mu.Unlock()

	r.mu.Lock()
	lock.refs--
	if _, live := r.entries[id]; !live {
		r.dropIdleLock(id)
	}
	r.mu.Unlock()

	return err
}

// Sweep removes entries whose TTL has elapsed and returns how many were
// removed. Entries mid-confirmation are safe: confirm deletes its own entry
// only after persistence completes, so sweeping an expired entry never
// discards persisted data.
func (r *Registry) Sweep() int {
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, p := range r.entries {
		if p.Expired(now) {
			delete(r.entries, id)
			r.dropIdleLock(id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs the periodic expiry sweep until the context is
// cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.Sweep(); removed > 0 {
					slog.Info("Expired pending imports swept", "removed", removed)
				}
			}
		}
	}()
}
