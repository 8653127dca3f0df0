// Package progress draws run progress on stderr. Output is suppressed when
// stderr is not a terminal or LICENSEKIT_NO_PROGRESS=1.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar renders a stage progress bar.
type Bar struct {
	Label   string
	Width   int
	Enabled bool

	mu      sync.Mutex
	out     io.Writer
	total   int
	current int
	stage   string
}

// New creates a bar writing to stderr.
func New(label string) *Bar {
	return &Bar{Label: label, Width: 30, Enabled: Enabled(), out: os.Stderr}
}

// NewTo creates an enabled bar writing to out.
func NewTo(out io.Writer, label string) *Bar {
	return &Bar{Label: label, Width: 30, Enabled: true, out: out}
}

// Step marks stage as started. step is 1-based; the bar fills with the
// stages already completed.
func (b *Bar) Step(step, total int, stage string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total = total
	b.current = min(max(step-1, 0), total)
	b.stage = stage
	b.render()
}

// Finish fills the bar and prints a summary line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.total
	if !b.Enabled {
		return
	}
	fmt.Fprintf(b.out, "\r\033[K✓ %s\n", summary)
}

// Clear erases the bar without a summary, e.g. before an error is printed.
func (b *Bar) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Enabled {
		fmt.Fprint(b.out, "\r\033[K")
	}
}

func (b *Bar) render() {
	if !b.Enabled {
		return
	}
	filled := 0
	if b.total > 0 {
		filled = b.current * b.Width / b.total
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	fmt.Fprintf(b.out, "\r\033[K%s [%s] %d/%d  %s", b.Label, bar, b.current, b.total, b.stage)
}

// Pct returns how much of the run has completed, 0-100.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.total == 0 {
		return 0
	}
	return float64(b.current) / float64(b.total) * 100
}

// Spinner shows activity for a check of unknown length.
type Spinner struct {
	Label   string
	Enabled bool

	mu      sync.Mutex
	out     io.Writer
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(label string) *Spinner {
	return &Spinner{Label: label, Enabled: Enabled(), out: os.Stderr, done: make(chan struct{})}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.Enabled {
		return
	}
	s.mu.Lock()
	s.stopped = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(s.out, "\r\033[K%c %s", frames[i%len(frames)], s.Label)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.Enabled {
		fmt.Fprint(s.out, "\r\033[K")
	}
}

// Update changes the label while running.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

// Enabled reports whether progress output should be drawn.
func Enabled() bool {
	if os.Getenv("LICENSEKIT_NO_PROGRESS") == "1" {
		return false
	}
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
