package progress

import (
	"sync"
	"time"
)

// speedWindow smooths a bytes/sec reading over the last five reported
// byte-delta samples (spec.md §4.2: "a rolling window of the last five
// reported byte-deltas yields a smoothed bytes/sec reading").
type speedWindow struct {
	mu      sync.Mutex
	deltas  [5]int64
	at      [5]time.Time
	filled  int
	next    int
}

func (w *speedWindow) add(delta int64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deltas[w.next] = delta
	w.at[w.next] = at
	w.next = (w.next + 1) % len(w.deltas)
	if w.filled < len(w.deltas) {
		w.filled++
	}
}

// bytesPerSec averages the filled samples over the elapsed wall time between
// the oldest and newest sample in the window. Returns 0 until at least two
// samples have been recorded.
func (w *speedWindow) bytesPerSec() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.filled < 2 {
		return 0
	}

	oldestIdx := w.next
	if w.filled < len(w.deltas) {
		oldestIdx = 0
	}
	newestIdx := (w.next - 1 + len(w.deltas)) % len(w.deltas)

	elapsed := w.at[newestIdx].Sub(w.at[oldestIdx]).Seconds()
	if elapsed <= 0 {
		return 0
	}

	var total int64
	for i := 0; i < w.filled; i++ {
		total += w.deltas[i]
	}
	return float64(total) / elapsed
}
