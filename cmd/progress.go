package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// progressPrinter renders a single refreshing status line while a scan runs.
// It satisfies prober.Progress.
type progressPrinter struct {
	out      io.Writer
	total    int
	name     string
	mu       sync.Mutex
	open     int
	closed   int
	failed   int
	elapsed  time.Duration
	updates  chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(out io.Writer, total int, name string) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		out:     out,
		total:   total,
		name:    name,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

// Observe records one finished probe. Safe for concurrent use.
func (p *progressPrinter) Observe(res scan.ProbeResult) {
	p.mu.Lock()
	switch res.Status {
	case scan.StatusOpen:
		p.open++
	case scan.StatusClosed:
		p.closed++
	default:
		p.failed++
	}
	p.elapsed += res.Elapsed
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Stop halts the refresh loop and leaves the final line on screen.
func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		<-p.stopped
		fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
		p.print()
		fmt.Fprintln(p.out)
	})
}

func (p *progressPrinter) loop() {
	defer close(p.stopped)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	fmt.Fprint(p.out, p.line())
}

func (p *progressPrinter) line() string {
	p.mu.Lock()
	open, closed, failed := p.open, p.closed, p.failed
	elapsed := p.elapsed
	p.mu.Unlock()

	completed := open + closed + failed
	total := max(p.total, completed)
	percent := float64(completed) / float64(total) * 100
	avg := time.Duration(0)
	if completed > 0 {
		avg = elapsed / time.Duration(completed)
	}

	return fmt.Sprintf("\r[%s] Progress: %d/%d (%.1f%%) open:%d closed:%d error:%d avg:%s",
		p.name, completed, total, percent, open, closed, failed, avg.Round(time.Millisecond))
}
