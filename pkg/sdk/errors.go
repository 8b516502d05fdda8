package fedsearch

import (
	"errors"

	"github.com/kailas-cloud/fedsearch/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrInvalidTransition      = domain.ErrInvalidTransition
	ErrNotReady               = domain.ErrNotReady
	ErrUnknownMixer           = domain.ErrUnknownMixer
	ErrInvalidMixerArguments  = domain.ErrInvalidMixerArguments
	ErrMixerFailed            = domain.ErrMixerFailed
	ErrFatalExecution         = domain.ErrFatalExecution
	ErrQueueFull              = domain.ErrQueueFull
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

var errUnhealthy = errors.New("fedsearch: database unavailable")
