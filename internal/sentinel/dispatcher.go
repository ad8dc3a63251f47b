package sentinel

// Dispatcher fans out escalation events to matching webhook sinks.
type Dispatcher struct {
	sinks []SinkConfig
}

// NewDispatcher creates a Dispatcher from sink configurations.
// Returns nil if sinks is empty (callers should nil-check).
func NewDispatcher(sinks []SinkConfig) *Dispatcher {
	if len(sinks) == 0 {
		return nil
	}
	return &Dispatcher{sinks: sinks}
}

// Dispatch sends the event to every sink whose severity list matches.
// Fires goroutines — does not block the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, sink := range d.sinks {
		if matches(sink.Severities, event.Severity) {
			go Send(sink, event)
		}
	}
}

func matches(severities []string, severity string) bool {
	if len(severities) == 0 {
		return true
	}
	for _, s := range severities {
		if s == severity {
			return true
		}
	}
	return false
}
