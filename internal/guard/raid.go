package guard

import (
	"sync"
	"time"
)

// raidWindow tracks join timestamps per chat over a sliding window.
// A burst of joins above the threshold within the window marks a raid.
type raidWindow struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	joins     map[int64][]time.Time
	notified  map[int64]bool
}

func newRaidWindow(window time.Duration, threshold int) *raidWindow {
	return &raidWindow{
		window:    window,
		threshold: threshold,
		joins:     make(map[int64][]time.Time),
		notified:  make(map[int64]bool),
	}
}

// registerJoin records a join and reports whether this join trips the
// raid threshold for the first time in the current burst. Once the
// window drains below the threshold the chat becomes eligible to trip
// again.
func (r *raidWindow) registerJoin(chatID int64, now time.Time) (count int, tripped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	q := r.joins[chatID]
	for len(q) > 0 && q[0].Before(cutoff) {
		q = q[1:]
	}
	q = append(q, now)
	r.joins[chatID] = q

	if len(q) < r.threshold {
		r.notified[chatID] = false
		return len(q), false
	}
	if r.notified[chatID] {
		return len(q), false
	}
	r.notified[chatID] = true
	return len(q), true
}
