package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/shared/constants"
)

// PortRange is an inclusive range of TCP ports.
type PortRange struct {
	start int
	end   int
}

// NewPortRange validates the bounds and returns the range.
func NewPortRange(start, end int) (PortRange, error) {
	switch {
	case start < constants.MinPort || start > constants.MaxPort:
		return PortRange{}, &InvalidRangeError{Start: start, End: end, Reason: "start port out of bounds"}
	case end < constants.MinPort || end > constants.MaxPort:
		return PortRange{}, &InvalidRangeError{Start: start, End: end, Reason: "end port out of bounds"}
	case start > end:
		return PortRange{}, &InvalidRangeError{Start: start, End: end, Reason: "start port greater than end port"}
	}
	return PortRange{start: start, end: end}, nil
}

// DefaultPortRange returns the well-known port range.
func DefaultPortRange() PortRange {
	return PortRange{start: constants.DefaultStartPort, end: constants.DefaultEndPort}
}

// ParsePortRange accepts "N" or "N-M".
func ParsePortRange(s string) (PortRange, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, &InvalidRangeError{Reason: fmt.Sprintf("invalid start port %q", lo)}
	}
	if !found {
		return NewPortRange(start, start)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return PortRange{}, &InvalidRangeError{Start: start, Reason: fmt.Sprintf("invalid end port %q", hi)}
	}
	return NewPortRange(start, end)
}

func (r PortRange) Start() int {
	return r.start
}

func (r PortRange) End() int {
	return r.end
}

// Len returns the number of ports in the range. A zero range has length 0.
func (r PortRange) Len() int {
	if r.start == 0 {
		return 0
	}
	return r.end - r.start + 1
}

// Port returns the i-th port of the range.
func (r PortRange) Port(i int) int {
	return r.start + i
}

// Contains reports whether port falls inside the range.
func (r PortRange) Contains(port int) bool {
	return r.start != 0 && port >= r.start && port <= r.end
}

func (r PortRange) String() string {
	if r.start == r.end {
		return strconv.Itoa(r.start)
	}
	return strconv.Itoa(r.start) + "-" + strconv.Itoa(r.end)
}
