package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// StatusFormatter decorates a status for display, e.g. with terminal colors.
type StatusFormatter func(status scan.Status) string

// WriteText writes one line per probed port in ascending port order:
//
//	port=<N> status=<OPEN|CLOSED|ERROR> [detail=<reason>]
func WriteText(w io.Writer, report *scan.Report, formatStatus StatusFormatter) error {
	bw := bufio.NewWriter(w)
	for _, res := range report.Results() {
		if _, err := fmt.Fprintln(bw, FormatLine(res, formatStatus)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatLine renders a single result. The detail is quoted when it contains
// whitespace so every line stays a list of key=value pairs.
func FormatLine(res scan.ProbeResult, formatStatus StatusFormatter) string {
	status := string(res.Status)
	if formatStatus != nil {
		status = formatStatus(res.Status)
	}

	var b strings.Builder
	b.WriteString("port=")
	b.WriteString(strconv.Itoa(res.Port))
	b.WriteString(" status=")
	b.WriteString(status)
	if res.Status == scan.StatusError && res.Detail != "" {
		b.WriteString(" detail=")
		b.WriteString(quoteIfNeeded(res.Detail))
	}
	return b.String()
}

func quoteIfNeeded(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '"' || !unicode.IsPrint(r) }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

// WriteSummary writes a one-line digest of the report.
func WriteSummary(w io.Writer, report *scan.Report) error {
	s := report.Summary()
	state := "complete"
	if report.Cancelled() {
		state = "cancelled"
	}
	_, err := fmt.Fprintf(w, "scan %s host=%s address=%s range=%s probed=%d/%d open=%d closed=%d error=%d duration=%s id=%s\n",
		state, report.Target().Host(), report.Target().Addr(), report.Range(), s.Total, report.Range().Len(),
		s.Open, s.Closed, s.Errors, report.Duration().Round(time.Millisecond), report.ID())
	return err
}
