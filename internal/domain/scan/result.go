package scan

import "time"

// Status is the classification of a single probe.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
	StatusError  Status = "ERROR"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusError:
		return true
	}
	return false
}

// ProbeResult is the outcome of probing one port. Err and Detail are only
// set for StatusError; Err is a *ProbeError and Detail its short message.
type ProbeResult struct {
	Port    int
	Status  Status
	Detail  string
	Err     error
	Elapsed time.Duration
}
