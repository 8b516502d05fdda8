package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that an id does not resolve to a record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition signals a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownMixer signals a mixer name that is not registered.
	ErrUnknownMixer = errors.New("unknown mixer")
	// ErrInvalidMixerArguments signals arguments rejected by a mixer.
	ErrInvalidMixerArguments = errors.New("invalid mixer arguments")
	// ErrMixerFailed signals a mixer that failed while producing a page.
	ErrMixerFailed = errors.New("mixer failed")
	// ErrNotReady signals a search that is not in a mixable state yet.
	ErrNotReady = errors.New("results not ready")
	// ErrProviderFailure signals a single provider that timed out or errored.
	ErrProviderFailure = errors.New("provider failure")
	// ErrFatalExecution signals a run in which no provider produced results.
	ErrFatalExecution = errors.New("search execution failed")
	// ErrInvalidRequest signals malformed client input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals a failed call to the embedding API.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding token budget exceeded")
	// ErrQueueFull signals that background work could not be scheduled.
	ErrQueueFull = errors.New("task queue full")
)

// TransitionError wraps ErrInvalidTransition with the offending status and event.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s on %s", ErrInvalidTransition.Error(), e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotReadyError wraps ErrNotReady with the status the search was in.
type NotReadyError struct {
	Status string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: status is %s", ErrNotReady.Error(), e.Status)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }
