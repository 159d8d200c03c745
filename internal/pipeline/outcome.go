package pipeline

import (
	"log/slog"
	"time"
)

// State is a step of a single record's ingestion.
type State string

const (
	StateStart            State = "start"
	StateFetching         State = "fetching"
	StateNormalizing      State = "normalizing"
	StateStoring          State = "storing"
	StateDone             State = "done"
	StateDuplicateSkipped State = "duplicate_skipped"
	StateFailed           State = "failed"
)

// Outcome is the result of ingesting one region.
type Outcome struct {
	Region     string
	RecordDate time.Time // zero if normalization did not complete
	State      State
	Stage      State // stage in progress when State became StateFailed
	Err        error
}

// Succeeded reports whether the region ended in Done or DuplicateSkipped.
func (o Outcome) Succeeded() bool {
	return o.State == StateDone || o.State == StateDuplicateSkipped
}

func (o *Outcome) enter(log *slog.Logger, s State) {
	o.State = s
	log.Debug("state transition", "state", s)
}

func (o Outcome) fail(err error) Outcome {
	o.Stage = o.State
	o.State = StateFailed
	o.Err = err
	return o
}

// Summary totals the per-region outcomes of a run.
type Summary struct {
	Mode       string
	Stored     int
	Duplicates int
	Failed     int
	Outcomes   []Outcome
}

func (s *Summary) add(o Outcome) {
	switch o.State {
	case StateDone:
		s.Stored++
	case StateDuplicateSkipped:
		s.Duplicates++
	case StateFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}
