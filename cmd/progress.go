package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

// progressPrinter renders a single self-overwriting progress line for a scan.
type progressPrinter struct {
	out      io.Writer
	name     string
	mu       sync.Mutex
	total    int
	ok       int
	findings int
	fail     int
	other    int
	duration time.Duration
	updates  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(name string) *progressPrinter {
	return &progressPrinter{
		out:     os.Stdout,
		name:    name,
		total:   1,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) Start(total int) {
	if total <= 0 {
		total = 1
	}
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
	go p.loop()
}

func (p *progressPrinter) Advance(o library.Outcome) {
	p.mu.Lock()
	switch {
	case o.Status == library.StatusOK:
		p.ok++
	case o.Status == library.StatusError:
		p.fail++
	case o.Status.Modified() || o.Status.Stale():
		p.findings++
	default:
		p.other++
	}
	p.duration += o.Duration
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Finish() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
	p.print()
	fmt.Fprintln(p.out)
}

func (p *progressPrinter) loop() {
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
	p.mu.Lock()
	defer p.mu.Unlock()

	completed := p.ok + p.findings + p.fail + p.other
	if completed > p.total {
		p.total = completed
	}

	percent := (float64(completed) / float64(p.total)) * 100
	avg := 0.0
	if completed > 0 {
		avg = p.duration.Seconds() / float64(completed)
	}

	fmt.Fprintf(p.out, "\r[%s] Progress: %d/%d (%.1f%%) OK:%d Findings:%d Fail:%d Avg:%.2fs",
		p.name, completed, p.total, percent, p.ok, p.findings, p.fail, avg)
}
