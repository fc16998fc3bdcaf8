package cmd

import (
	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

// formatStatusWithColor highlights OPEN and ERROR. CLOSED is the common case
// and stays plain.
func formatStatusWithColor(status scan.Status) string {
	switch status {
	case scan.StatusOpen:
		return colorSuccess(string(status))
	case scan.StatusError:
		return colorError(string(status))
	default:
		return string(status)
	}
}
