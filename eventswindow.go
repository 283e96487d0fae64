package botfilter

import (
	"container/list"
	"sync"
	"time"

	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// EventsWindow keeps the most recent decision events, newest first.
// Events older than windowSize * numWindows are dropped by Expire.
type EventsWindow struct {
	data    *list.List
	maxSize int
	ttl     time.Duration
	mutex   sync.RWMutex
}

// NewEventsWindow keeps up to maxEvents events for windowSize * numWindows
func NewEventsWindow(maxEvents int, windowSize time.Duration, numWindows int) *EventsWindow {
	return &EventsWindow{
		data:    list.New(),
		maxSize: maxEvents,
		ttl:     windowSize * time.Duration(numWindows),
	}
}

// Add adds a single event
func (ew *EventsWindow) Add(e *data.Event) {
	if ew.maxSize <= 0 {
		return
	}

	ew.mutex.Lock()
	defer ew.mutex.Unlock()

	ew.data.PushFront(e)
	if ew.data.Len() > ew.maxSize {
		ew.data.Remove(ew.data.Back())
	}
}

// Events returns all kept events, newest first
func (ew *EventsWindow) Events() []*data.Event {
	ew.mutex.RLock()
	defer ew.mutex.RUnlock()

	events := make([]*data.Event, 0, ew.data.Len())
	for e := ew.data.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(*data.Event))
	}

	return events
}

// Len returns the number of kept events
func (ew *EventsWindow) Len() int {
	ew.mutex.RLock()
	defer ew.mutex.RUnlock()

	return ew.data.Len()
}

// Expire removes the events that are older than the window at now and
// returns how many are left
func (ew *EventsWindow) Expire(now time.Time) int {
	ew.mutex.Lock()
	defer ew.mutex.Unlock()

	for {
		oldest := ew.data.Back()
		if oldest == nil {
			break
		}

		if now.Sub(oldest.Value.(*data.Event).Time) <= ew.ttl {
			break
		}

		ew.data.Remove(oldest)
		log.Tracef("expiring %s event for %s", oldest.Value.(*data.Event).Kind, oldest.Value.(*data.Event).IP)
	}

	return ew.data.Len()
}
