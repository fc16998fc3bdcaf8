package scan

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// ResolutionError reports that a host could not be turned into an address.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %q: %s", e.Host, sharedErrors.ErrResolution)
	}
	return fmt.Sprintf("resolve %q: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == sharedErrors.ErrResolution
}

// InvalidRangeError reports port bounds outside 1-65535 or start > end.
type InvalidRangeError struct {
	Start  int
	End    int
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("%s %d-%d: %s", sharedErrors.ErrInvalidRange, e.Start, e.End, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == sharedErrors.ErrInvalidRange
}

// ProbeError is a transport fault on a single port. It never aborts a scan;
// it is recorded in the report as StatusError.
type ProbeError struct {
	Port int
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe port %d: %v", e.Port, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func (e *ProbeError) Is(target error) bool {
	return target == sharedErrors.ErrProbe
}
