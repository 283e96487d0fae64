package botfilter

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
)

// Window implements a rolling window using a TreeMap as storage
type Window struct {
	data  *treemap.Map
	mutex sync.RWMutex

	windowSize time.Duration
	numWindows int
}

// NewWindow creates a Window with numWindows buckets that each cover a windowSize time range
func NewWindow(windowSize time.Duration, numWindows int) *Window {
	return &Window{
		data:       treemap.NewWithIntComparator(),
		windowSize: windowSize,
		numWindows: numWindows,
	}
}

// Add counts one event at t
func (w *Window) Add(t time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	key := w.keyFor(t)
	var val int64

	if v, ok := w.data.Get(key); ok {
		val = v.(int64)
	}

	w.data.Put(key, val+1)
}

// Count returns the total count of events in all buckets
func (w *Window) Count() int64 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	var total int64

	iter := w.data.Iterator()
	for iter.Next() {
		total += iter.Value().(int64)
	}

	return total
}

// Expire drops the buckets that are older than numWindows * windowSize at now
func (w *Window) Expire(now time.Time) {
	threshold := w.keyFor(now.Add(-1 * w.windowSize * time.Duration(w.numWindows)))

	w.mutex.Lock()
	defer w.mutex.Unlock()

	expired := make([]int, 0)
	iter := w.data.Iterator()
	for iter.Next() {
		key := iter.Key().(int)
		if key > threshold {
			break
		}
		expired = append(expired, key)
	}

	for _, key := range expired {
		w.data.Remove(key)
	}
}

func (w *Window) keyFor(t time.Time) int {
	return int(t.UnixNano() - t.UnixNano()%w.windowSize.Nanoseconds())
}
