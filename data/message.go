package data

import (
	"time"
)

// Event kinds
const (
	EventDecision  = "decision"
	EventTrapped   = "trapped"
	EventRetracted = "retracted"
)

// Event describes something the filter did with a request. Events are
// published for consumers like the host application's analytics.
type Event struct {
	Kind        string    `json:"kind"`
	Route       string    `json:"route"`
	Action      string    `json:"action"`
	Reason      string    `json:"reason,omitempty"`
	IP          string    `json:"ip"`
	Fingerprint string    `json:"fingerprint"`
	URI         string    `json:"uri"`
	Time        time.Time `json:"time"`
}
