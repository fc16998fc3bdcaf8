// Package scan holds the port scanning domain model: targets, port ranges,
// per-port probe results and the reports that aggregate them.
package scan
