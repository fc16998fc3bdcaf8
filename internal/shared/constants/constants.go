package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// MinPort and MaxPort bound the valid TCP port domain.
	MinPort = 1
	MaxPort = 65535

	// DefaultStartPort and DefaultEndPort describe the well-known port range
	// scanned when the operator does not pick one.
	DefaultStartPort = 1
	DefaultEndPort   = 1024

	// DefaultConcurrency caps in-flight probes when no ceiling is configured.
	DefaultConcurrency = 100
	// DefaultProbeTimeout bounds a single connection attempt.
	DefaultProbeTimeout = 1 * time.Second
	// DefaultLookupTimeout bounds host resolution.
	DefaultLookupTimeout = 5 * time.Second
)
