package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// EventKind names something that happened to a search.
type EventKind string

// Lifecycle events.
const (
	EventStart            EventKind = "start"
	EventProviderFinished EventKind = "provider_finished"
	EventProviderFailed   EventKind = "provider_failed"
	EventAllFinished      EventKind = "all_finished"
	EventFail             EventKind = "fail"
	EventRescoreRequested EventKind = "rescore_requested"
	EventRescoreDone      EventKind = "rescore_done"
	EventRerun            EventKind = "rerun"
)

// ProviderFailurePrefix starts every message recorded for a failed provider.
const ProviderFailurePrefix = "ProviderFailure: "

// Event is the input of Advance. Only the fields relevant to Kind are read.
type Event struct {
	Kind      EventKind
	Provider  string
	Count     int
	Reason    string
	Succeeded int
	Failed    int
	Partial   bool
	At        time.Time
}

// Start is emitted when a worker picks a search up.
func Start(providers int) Event { return Event{Kind: EventStart, Count: providers} }

// ProviderFinished is emitted when one provider responded.
func ProviderFinished(provider string, count int) Event {
	return Event{Kind: EventProviderFinished, Provider: provider, Count: count}
}

// ProviderFailed is emitted when one provider timed out or errored.
func ProviderFailed(provider, reason string) Event {
	return Event{Kind: EventProviderFailed, Provider: provider, Reason: reason}
}

// AllFinished is emitted once every provider step has returned.
func AllFinished(succeeded, failed int) Event {
	return Event{Kind: EventAllFinished, Succeeded: succeeded, Failed: failed}
}

// Fail is emitted on an unrecoverable error.
func Fail(reason string) Event { return Event{Kind: EventFail, Reason: reason} }

// RescoreRequested is emitted by the rescore controller.
func RescoreRequested() Event { return Event{Kind: EventRescoreRequested} }

// RescoreDone is emitted when post-processing finished. partial selects the _READY variant.
func RescoreDone(count int, partial bool) Event {
	return Event{Kind: EventRescoreDone, Count: count, Partial: partial}
}

// Rerun is emitted by the rerun controller.
func Rerun(at time.Time) Event { return Event{Kind: EventRerun, At: at} }

// Transition is the computed effect of an event.
type Transition struct {
	From     Status
	To       Status
	Message  string
	ResetLog bool
}

// Advance computes the next status for an event. It performs no I/O.
// Illegal combinations return an error wrapping domain.ErrInvalidTransition.
func Advance(from Status, ev Event) (Transition, error) {
	t := Transition{From: from, To: from}
	illegal := func() (Transition, error) {
		return Transition{From: from, To: from}, &domain.TransitionError{From: string(from), Event: string(ev.Kind)}
	}

	if !from.IsValid() {
		return illegal()
	}

	switch ev.Kind {
	case EventStart:
		if from != New {
			return illegal()
		}
		t.To = Running
		t.Message = fmt.Sprintf("Running %d providers", ev.Count)

	case EventProviderFinished:
		if from != Running {
			return illegal()
		}
		if ev.Count == 0 {
			t.Message = fmt.Sprintf("Provider %s returned no results", ev.Provider)
		} else {
			t.Message = fmt.Sprintf("Provider %s returned %d results", ev.Provider, ev.Count)
		}

	case EventProviderFailed:
		if from != Running {
			return illegal()
		}
		t.Message = ProviderFailurePrefix + ev.Provider + ": " + ev.Reason

	case EventAllFinished:
		if from != Running {
			return illegal()
		}
		switch {
		case ev.Succeeded == 0:
			t.To = Failed
			t.Message = "Failed: no provider returned results"
		case ev.Failed > 0:
			t.To = PartialResultsReady
			t.Message = fmt.Sprintf("Partial results ready: %d of %d providers responded",
				ev.Succeeded, ev.Succeeded+ev.Failed)
		default:
			t.To = FullResultsReady
			t.Message = fmt.Sprintf("Results ready: %d providers responded", ev.Succeeded)
		}

	case EventFail:
		if from != New && from != Running {
			return illegal()
		}
		t.To = Failed
		t.Message = "Failed: " + ev.Reason

	case EventRescoreRequested:
		if !from.IsMixable() {
			return illegal()
		}
		t.To = Rescoring
		t.Message = "Rescore requested"

	case EventRescoreDone:
		if from != Rescoring {
			return illegal()
		}
		t.To = FullResultsReady
		if ev.Partial {
			t.To = PartialResultsReady
		}
		t.Message = fmt.Sprintf("Rescored %d results", ev.Count)

	case EventRerun:
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		t.To = New
		t.ResetLog = true
		t.Message = "Re-run on " + at.UTC().Format(time.RFC3339)

	default:
		return illegal()
	}

	return t, nil
}

// IsProviderFailure reports whether a log message records a provider failure.
func IsProviderFailure(msg string) bool {
	return strings.HasPrefix(msg, ProviderFailurePrefix)
}
