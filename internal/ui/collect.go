package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/lanloc/internal/dispatch"
)

const collectRefresh = 100 * time.Millisecond

type (
	responseMsg struct{}
	finishedMsg struct{ err error }
	refreshMsg  time.Time
)

// CollectModel is a Bubble Tea model showing a locate round in progress:
// a spinner, the elapsed share of the collection window and the number of
// responses received. It quits when the round finishes.
type CollectModel struct {
	label     string
	window    time.Duration
	start     time.Time
	now       time.Time
	responses int
	done      bool
	err       error
	cancel    context.CancelFunc

	spinner spinner.Model
	bar     progress.Model
}

// NewCollectModel creates the model. cancel is called when the user
// interrupts from the keyboard.
func NewCollectModel(label string, window time.Duration, cancel context.CancelFunc) CollectModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	now := time.Now()
	return CollectModel{
		label:   label,
		window:  window,
		start:   now,
		now:     now,
		cancel:  cancel,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func refresh() tea.Cmd {
	return tea.Tick(collectRefresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Init implements tea.Model
func (m CollectModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

// Update implements tea.Model
func (m CollectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		w := msg.Width - 40
		if w > 50 {
			w = 50
		}
		if w < 20 {
			w = 20
		}
		m.bar.Width = w
		return m, nil

	case responseMsg:
		m.responses++
		return m, nil

	case finishedMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case refreshMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent returns the elapsed share of the collection window.
func (m CollectModel) Percent() float64 {
	if m.window <= 0 {
		return 0
	}
	p := float64(m.now.Sub(m.start)) / float64(m.window)
	if p > 1 {
		p = 1
	}
	return p
}

// Responses returns the number of datagrams seen so far.
func (m CollectModel) Responses() int { return m.responses }

// View implements tea.Model. The finished view is empty so the result
// output starts on a clean line.
func (m CollectModel) View() string {
	if m.done {
		return ""
	}
	status := fmt.Sprintf("%d response", m.responses)
	if m.responses != 1 {
		status += "s"
	}
	return fmt.Sprintf("%s%s\n%s  %s\n",
		m.spinner.View(),
		ProgressLabelStyle.Render(m.label),
		ProgressBarStyle.Render(m.bar.ViewAs(m.Percent())),
		StepNoteStyle.Render(status),
	)
}

// ProgressBarStyle pads the progress bar line
var ProgressBarStyle = lipgloss.NewStyle().PaddingLeft(2)

// StepNoteStyle is for secondary status notes
var StepNoteStyle = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)

// Collect runs fn while a progress display is drawn on out. fn must
// install the observer on its dispatcher so received datagrams are
// counted. A keyboard interrupt cancels the context passed to fn. Collect
// returns fn's error.
func Collect(ctx context.Context, out io.Writer, label string, window time.Duration,
	fn func(ctx context.Context, obs dispatch.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewCollectModel(label, window, cancel), tea.WithOutput(out))

	obs := dispatch.ObserverFunc(func(_ dispatch.State, ev dispatch.Event) {
		if ev.Readable() {
			p.Send(responseMsg{})
		}
	})

	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, obs)
		errc <- err
		p.Send(finishedMsg{err: err})
	}()

	_, err := p.Run()
	cancel()
	fnErr := <-errc
	if err != nil && !errors.Is(err, tea.ErrInterrupted) && !errors.Is(err, tea.ErrProgramKilled) && fnErr == nil {
		return fmt.Errorf("progress display: %w", err)
	}
	return fnErr
}
