package checkout

import (
	"sync"
	"time"

	"github.com/noah-isme/storefront/internal/payment"
)

// OutcomeKind is the terminal state of a checkout attempt.
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota + 1
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is reported once per attempt when the provider resolves it.
type Outcome struct {
	Kind        OutcomeKind      `json:"status"`
	Reference   string           `json:"reference"`
	Transaction *payment.Receipt `json:"transaction,omitempty"`
	Message     string           `json:"message"`
	At          time.Time        `json:"at"`
}

// OutcomeReporter receives checkout outcomes.
type OutcomeReporter interface {
	Report(Outcome)
}

// ReporterFunc adapts a function to OutcomeReporter.
type ReporterFunc func(Outcome)

// Report calls f(o).
func (f ReporterFunc) Report(o Outcome) { f(o) }

// Recorder keeps the most recent outcome for the display to poll.
type Recorder struct {
	mu     sync.RWMutex
	latest *Outcome
}

// Report implements OutcomeReporter.
func (r *Recorder) Report(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &o
}

// Latest returns the last reported outcome.
func (r *Recorder) Latest() (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return Outcome{}, false
	}
	return *r.latest, true
}
