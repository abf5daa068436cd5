// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package progress reports the status of long waits: a spinner on a
// terminal, log lines otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Reporter receives status updates of a long running operation.
type Reporter interface {
	// Tick has the signature of poll.Options.OnTick.
	Tick(attempt int, status string)
	// Done stops reporting. err is the outcome of the operation.
	Done(err error)
}

// New returns a spinner Reporter when stderr is a terminal and quiet is
// false, and a log Reporter otherwise.
func New(title string, quiet bool) Reporter {
	if !quiet && term.IsTerminal(int(os.Stderr.Fd())) {
		return NewSpinner(title, os.Stderr)
	}
	return &Logger{Title: title}
}

// Logger logs every status change.
type Logger struct {
	Title string
	last  string
}

func (l *Logger) Tick(attempt int, status string) {
	if status == l.last {
		return
	}
	l.last = status
	log.WithFields(log.Fields{"attempt": attempt}).Infof("%s: %s", l.Title, status)
}

func (l *Logger) Done(err error) {
	if err != nil {
		log.WithError(err).Errorf("%s failed", l.Title)
		return
	}
	log.Infof("%s done", l.Title)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00c8f0"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
)

type statusMsg struct {
	attempt int
	status  string
}

type doneMsg struct{ err error }

type model struct {
	title   string
	spinner spinner.Model
	status  string
	attempt int
	err     error
	done    bool
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status, m.attempt = msg.status, msg.attempt
		return m, nil
	case doneMsg:
		m.done, m.err = true, msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("%s %s\n", errStyle.Render("✗"), titleStyle.Render(m.title))
		}
		return fmt.Sprintf("%s %s\n", okStyle.Render("✓"), titleStyle.Render(m.title))
	}
	line := fmt.Sprintf("%s %s", m.spinner.View(), titleStyle.Render(m.title))
	if m.status != "" {
		line += " " + statusStyle.Render(fmt.Sprintf("%s (%d)", m.status, m.attempt))
	}
	return line + "\n"
}

// Spinner renders a bubbletea spinner with the latest status.
type Spinner struct {
	program *tea.Program
	wg      sync.WaitGroup
	once    sync.Once
}

// NewSpinner starts a spinner writing to w.
func NewSpinner(title string, w io.Writer) *Spinner {
	m := model{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
	}

	s := &Spinner{program: tea.NewProgram(m, tea.WithOutput(w), tea.WithInput(nil))}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.program.Run(); err != nil {
			log.WithError(err).Debug("spinner stopped")
		}
	}()
	return s
}

func (s *Spinner) Tick(attempt int, status string) {
	s.program.Send(statusMsg{attempt: attempt, status: status})
}

func (s *Spinner) Done(err error) {
	s.once.Do(func() {
		s.program.Send(doneMsg{err: err})
		s.wg.Wait()
	})
}
