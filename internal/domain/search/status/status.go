package status

import "strings"

// Status is the lifecycle state of a search.
type Status string

// Search lifecycle states.
const (
	New                 Status = "NEW"
	Running             Status = "RUNNING"
	FullResultsReady    Status = "FULL_RESULTS_READY"
	PartialResultsReady Status = "PARTIAL_RESULTS_READY"
	Rescoring           Status = "RESCORING"
	Failed              Status = "FAILED"
)

// All lists every legal status.
func All() []Status {
	return []Status{New, Running, FullResultsReady, PartialResultsReady, Rescoring, Failed}
}

// IsValid checks if the status is one of the closed set.
func (s Status) IsValid() bool {
	switch s {
	case New, Running, FullResultsReady, PartialResultsReady, Rescoring, Failed:
		return true
	}
	return false
}

// IsReady reports whether s is one of the _READY variants.
func (s Status) IsReady() bool {
	return s.IsValid() && strings.HasSuffix(string(s), "_READY")
}

// IsMixable reports whether results may be mixed in this state.
func (s Status) IsMixable() bool {
	return s.IsReady() || s == Rescoring
}

// IsSettled reports whether a waiter has nothing more to wait for.
func (s Status) IsSettled() bool {
	return s.IsMixable() || s == Failed
}
