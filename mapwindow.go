package botfilter

import (
	"sync"
	"time"
)

// MapWindow keeps a rolling Window for each key
type MapWindow struct {
	windowSize time.Duration
	numWindows int
	data       map[string]*Window
	mutex      sync.RWMutex
}

// NewMapWindow creates a new MapWindow. windowSize determines the size of each window, numWindows how many windows there should be
func NewMapWindow(windowSize time.Duration, numWindows int) *MapWindow {
	return &MapWindow{
		windowSize: windowSize,
		numWindows: numWindows,
		data:       make(map[string]*Window),
	}
}

// Add counts one event for key at t
func (mw *MapWindow) Add(key string, t time.Time) {
	mw.mutex.Lock()
	defer mw.mutex.Unlock()

	if _, ok := mw.data[key]; !ok {
		mw.data[key] = NewWindow(mw.windowSize, mw.numWindows)
	}

	mw.data[key].Add(t)
}

// Total determines the sum of all map entries
func (mw *MapWindow) Total() int64 {
	mw.mutex.RLock()
	defer mw.mutex.RUnlock()

	var total int64
	for _, window := range mw.data {
		total += window.Count()
	}

	return total
}

// TotalMap returns a map that contains the key along with the sum of its entries
func (mw *MapWindow) TotalMap() map[string]int64 {
	mw.mutex.RLock()
	defer mw.mutex.RUnlock()

	data := make(map[string]int64, len(mw.data))
	for k, window := range mw.data {
		data[k] = window.Count()
	}

	return data
}

// Size returns how many entries the MapWindow has got
func (mw *MapWindow) Size() int {
	mw.mutex.RLock()
	defer mw.mutex.RUnlock()

	return len(mw.data)
}

// Expire expires all windows and drops the keys that have no events left
func (mw *MapWindow) Expire(now time.Time) {
	mw.mutex.Lock()
	defer mw.mutex.Unlock()

	for key, window := range mw.data {
		window.Expire(now)
		if window.Count() <= 0 {
			delete(mw.data, key)
		}
	}
}
