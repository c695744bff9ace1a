package tree

import "errors"

var (
	// ErrDataUnavailable is returned when a backing query failed or produced
	// nothing meaningful. Callers render a placeholder instead.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrResolutionFailed is returned when a subscription target could not be
	// resolved from a node locator.
	ErrResolutionFailed = errors.New("subscription target not resolved")
	// ErrStaleGeneration marks a result that was superseded by a newer refresh.
	ErrStaleGeneration = errors.New("stale generation")
	// ErrRevealFailed wraps host reveal/select failures.
	ErrRevealFailed = errors.New("reveal failed")
)
