package audit

import (
	"time"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

// Progress receives run progress. Calls come from the orchestrating goroutine
// only, never from workers.
type Progress interface {
	Start(total int)
	Advance(outcome library.Outcome)
	Finish()
}

// Recorder receives pipeline events, typically to feed metrics. Lookup and
// fetch observations are made from worker goroutines.
type Recorder interface {
	ObserveLookup(accepted bool)
	ObserveFetch(duration time.Duration, err error)
	ObserveOutcome(outcome library.Outcome)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Start(int)               {}
func (NopProgress) Advance(library.Outcome) {}
func (NopProgress) Finish()                 {}

// NopRecorder discards pipeline events.
type NopRecorder struct{}

func (NopRecorder) ObserveLookup(bool)                {}
func (NopRecorder) ObserveFetch(time.Duration, error) {}
func (NopRecorder) ObserveOutcome(library.Outcome)    {}
