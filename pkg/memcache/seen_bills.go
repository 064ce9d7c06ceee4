// pkg/memcache/seen_bills.go
package mem

import (
	"sync"
	"time"
)

// SeenBillStore remembers recently processed gateway bill codes so
// redelivered webhooks can be dropped before touching the database. The
// ledger remains the source of truth; this is only a fast path.
type SeenBillStore interface {
	// MarkSeen records the code and reports whether it was already known
	// and unexpired.
	MarkSeen(code string, ttl time.Duration) bool
	Seen(code string) bool
}

type seenEntry struct {
	expiresAt time.Time
}

type SeenBills struct {
	mu   sync.RWMutex
	data map[string]seenEntry
}

func NewSeenBills() *SeenBills {
	return &SeenBills{
		data: make(map[string]seenEntry),
	}
}

func (s *SeenBills) MarkSeen(code string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[code]
	already := ok && time.Now().Before(e.expiresAt)

	s.data[code] = seenEntry{expiresAt: time.Now().Add(ttl)}

	// Lazy eviction keeps the map from growing unbounded.
	if len(s.data) > 4096 {
		now := time.Now()
		for k, v := range s.data {
			if now.After(v.expiresAt) {
				delete(s.data, k)
			}
		}
	}

	return already
}

func (s *SeenBills) Seen(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[code]
	return ok && time.Now().Before(e.expiresAt)
}
