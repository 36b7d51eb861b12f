package system

import (
	"errors"
	"fmt"
)

// ErrMetricUnavailable marks a host signal that could not be read or parsed.
// Callers do not retry it: the sampler skips the tick, the analyzer fails the
// request.
var ErrMetricUnavailable = errors.New("metric unavailable")

// Unavailable wraps cause so that both errors.Is(err, ErrMetricUnavailable)
// and errors.Is(err, cause) hold.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrMetricUnavailable, cause)
}
