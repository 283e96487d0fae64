package botfilter

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/scraperwall/botfilter/data"
)

// Stats counts the filter's decisions
type Stats struct {
	Total        int64     `json:"total"`
	Pixel        int64     `json:"pixel"`
	Interstitial int64     `json:"interstitial"`
	Pass         int64     `json:"pass"`
	Trapped      int64     `json:"trapped"`
	Verified     int64     `json:"verified"`
	Time         time.Time `json:"time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Stats) add(route RouteKind, v data.Verdict) {
	switch v.Action {
	case data.ShowPixel:
		s.Pixel++
	case data.ShowInterstitial:
		s.Interstitial++
	default:
		s.Pass++
	}

	if route == Trap && v.IsBot() {
		s.Trapped++
	}
	if v.Reason == data.ReasonVerified {
		s.Verified++
	}

	s.Total++
}

func (s *Stats) sub(o Stats) {
	s.Total -= o.Total
	s.Pixel -= o.Pixel
	s.Interstitial -= o.Interstitial
	s.Pass -= o.Pass
	s.Trapped -= o.Trapped
	s.Verified -= o.Verified
}

// StatsWindows keeps decision counts in time windows of windowSize.
// The embedded Stats are the sum over all windows still kept.
type StatsWindows struct {
	Stats
	Map        *treemap.Map
	reasons    *MapWindow
	windowSize time.Duration
	numWindows int
	mutex      sync.RWMutex
}

// NewStatsWindows keeps numWindows windows of windowSize
func NewStatsWindows(windowSize time.Duration, numWindows int) *StatsWindows {
	return &StatsWindows{
		Map:        treemap.NewWith(utils.TimeComparator),
		reasons:    NewMapWindow(windowSize, numWindows),
		windowSize: windowSize,
		numWindows: numWindows,
	}
}

// Add counts one decision made at t
func (s *StatsWindows) Add(route RouteKind, v data.Verdict, t time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	k := s.keyFor(t)

	var stats Stats
	if raw, ok := s.Map.Get(k); ok {
		stats = raw.(Stats)
	} else {
		stats = Stats{Time: k}
	}

	stats.add(route, v)
	stats.UpdatedAt = time.Now()
	s.Stats.add(route, v)
	s.Stats.UpdatedAt = stats.UpdatedAt

	s.Map.Put(k, stats)

	if v.Reason != "" {
		s.reasons.Add(v.Reason, t)
	}
}

// All returns the windows in chronological order
func (s *StatsWindows) All() []Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	res := make([]Stats, 0, s.Map.Size())
	iter := s.Map.Iterator()
	for iter.Next() {
		res = append(res, iter.Value().(Stats))
	}

	return res
}

// Reasons returns how often each rule or reason decided a request in the kept windows
func (s *StatsWindows) Reasons() map[string]int64 {
	return s.reasons.TotalMap()
}

// Totals returns the sum over all kept windows
func (s *StatsWindows) Totals() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.Stats
}

// Expire drops windows older than numWindows * windowSize
func (s *StatsWindows) Expire(now time.Time) {
	threshold := now.Add(s.windowSize * -time.Duration(s.numWindows))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	iter := s.Map.Iterator()
	expired := make([]time.Time, 0)
	for iter.Next() {
		key := iter.Key().(time.Time)
		if key.After(threshold) {
			break
		}

		s.Stats.sub(iter.Value().(Stats))
		expired = append(expired, key)
	}

	for _, key := range expired {
		s.Map.Remove(key)
	}

	s.reasons.Expire(now)
}

func (s *StatsWindows) keyFor(t time.Time) time.Time {
	return t.Truncate(s.windowSize)
}
