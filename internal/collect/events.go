package collect

import "github.com/TobiSchelling/dartq/internal/filing"

// EventKind identifies a progress point in a collection run.
type EventKind string

const (
	EventCacheScanned   EventKind = "cache_scanned"
	EventProbeStarted   EventKind = "probe_started"
	EventProbeResolved  EventKind = "probe_resolved"
	EventFetchStarted   EventKind = "fetch_started"
	EventFetchCompleted EventKind = "fetch_completed"
)

// Event is emitted to a ProgressFunc during a run. Fields not meaningful for
// a kind are left zero.
type Event struct {
	Kind      EventKind
	RunID     string
	EntityID  string
	Period    filing.ReportPeriod
	Variant   filing.Variant
	Tasks     int
	Succeeded int
	Failed    int
}

// ProgressFunc receives progress events. It is called from the collecting
// goroutine, never concurrently.
type ProgressFunc func(Event)

func (f ProgressFunc) emit(e Event) {
	if f != nil {
		f(e)
	}
}
