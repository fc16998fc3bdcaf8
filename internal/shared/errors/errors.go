package errors

import "errors"

// Domain errors
var (
	// Scan errors
	ErrResolution       = errors.New("host resolution failed")
	ErrInvalidRange     = errors.New("invalid port range")
	ErrProbe            = errors.New("probe failed")
	ErrScanCancelled    = errors.New("scan cancelled")
	ErrEmptyTarget      = errors.New("target cannot be empty")
	ErrNoAddress        = errors.New("no usable address for host")
	ErrUnresolved       = errors.New("target has no resolved address")
	ErrInvalidOption    = errors.New("invalid scan option")
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")

	// Report errors
	ErrReportNotFound  = errors.New("report not found")
	ErrInvalidReportID = errors.New("invalid report ID")

	// Job errors
	ErrJobNotFound = errors.New("job not found")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
