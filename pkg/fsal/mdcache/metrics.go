package mdcache

// Metrics receives observations from the metadata cache. Implementations
// must be safe for concurrent use.
//
// The Prometheus implementation lives in pkg/metrics; passing nil to New
// selects the built-in no-op implementation.
type Metrics interface {
	// RecordHit counts a wrap satisfied by an existing entry
	RecordHit()

	// RecordMiss counts a wrap that created a new entry
	RecordMiss()

	// RecordKill counts an entry transitioning to the killed state
	RecordKill()

	// RecordDelay counts an open rejected by FD-budget backpressure
	RecordDelay()

	// RecordEntryCount reports the live entry count after a change
	RecordEntryCount(count int)
}

// noopMetrics is used when no Metrics implementation is supplied.
type noopMetrics struct{}

func (noopMetrics) RecordHit()           {}
func (noopMetrics) RecordMiss()          {}
func (noopMetrics) RecordKill()          {}
func (noopMetrics) RecordDelay()         {}
func (noopMetrics) RecordEntryCount(int) {}
