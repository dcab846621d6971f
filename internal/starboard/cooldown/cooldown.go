// Package cooldown limits how often a voter may vote on one starboard.
package cooldown

import (
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cooldown bucket.
type Key struct {
	UserID      snowflake.ID
	StarboardID int64
}

// window holds the times of the acquisitions made within the last period,
// oldest first. Expired times are dropped on the next access.
type window struct {
	used []time.Time
}

// prune drops acquisitions that are at least period older than now.
func (w *window) prune(now time.Time, period time.Duration) {
	expired := 0
	for expired < len(w.used) && now.Sub(w.used[expired]) >= period {
		expired++
	}
	w.used = w.used[expired:]
}

// Mapping holds a bounded number of buckets; the least recently used bucket
// is evicted when the cap is reached.
type Mapping struct {
	windows *lru.Cache[Key, *window]
	mu      sync.Mutex
}

// New creates a mapping that keeps at most size buckets.
func New(size int) (*Mapping, error) {
	windows, err := lru.New[Key, *window](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cooldown cache: %w", err)
	}

	return &Mapping{windows: windows}, nil
}

// TryAcquire takes one of count acquisitions allowed in any period long
// span. It returns false and the time until the oldest acquisition expires
// when none is left. A count or period of zero disables the limit.
func (m *Mapping) TryAcquire(key Key, count int, period time.Duration, now time.Time) (bool, time.Duration) {
	if count <= 0 || period <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows.Get(key)
	if !ok {
		w = &window{}
		m.windows.Add(key, w)
	}

	w.prune(now, period)
	if len(w.used) >= count {
		return false, w.used[0].Add(period).Sub(now)
	}

	w.used = append(w.used, now)

	return true, 0
}

// Len returns the number of live buckets.
func (m *Mapping) Len() int {
	return m.windows.Len()
}
