package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const defaultLateralSpan = 0.25

// Option configures the view.
type Option func(*Model)

// WithFrame sets the redraw period.
func WithFrame(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.frame = d
		}
	}
}

// WithTrackWidth fixes the number of columns used for the track.
func WithTrackWidth(cols int) Option {
	return func(m *Model) {
		m.trackWidth = cols
	}
}

// WithLateralSpan sets the lateral offset drawn on the outermost lanes.
func WithLateralSpan(span float64) Option {
	return func(m *Model) {
		if span > 0 {
			m.lateralSpan = span
		}
	}
}

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
}

// New creates a new TUI application
func New(source Source, opts ...Option) *App {
	return &App{model: NewModel(source, opts...)}
}

// Run starts the TUI and blocks until the user quits, ctx is done or the
// process is signalled. The caller stops the simulation afterwards.
func (a *App) Run(ctx context.Context) error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	exited := make(chan struct{})
	defer close(exited)

	go func() {
		select {
		case <-ctx.Done():
		case <-sigChan:
		case <-exited:
			return
		}
		a.program.Send(tea.Quit())
	}()

	_, err := a.program.Run()
	return err
}
