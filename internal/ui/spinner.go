package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner animates a single status line until stopped. It is meant for
// the short blocking steps before the dashboard takes over the terminal.
type LineSpinner struct {
	spinner  spinner.Spinner
	interval time.Duration

	message string
	done    chan struct{}
	once    sync.Once
}

func newLineSpinner(s spinner.Spinner, interval time.Duration, message string) *LineSpinner {
	return &LineSpinner{
		spinner:  s,
		interval: interval,
		message:  message,
		done:     make(chan struct{}),
	}
}

// NewConnectionSpinner is used while dialing the relay.
func NewConnectionSpinner(message string) *LineSpinner {
	return newLineSpinner(spinner.Globe, 180*time.Millisecond, message)
}

func (s *LineSpinner) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		frames := s.spinner.Frames
		for i := 0; ; i++ {
			fmt.Printf("\r%s %s", SpinnerStyle.Render(frames[i%len(frames)]), s.message)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line. It is safe to call more than once.
func (s *LineSpinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		fmt.Print("\r\033[K")
	})
}

// RunConnectionSpinner starts a connection spinner and returns its stop func.
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
