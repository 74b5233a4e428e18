package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

type noteLevel int

const (
	noteInfo noteLevel = iota
	noteWarn
	noteAlert
)

type noteMsg struct {
	level noteLevel
	text  string
}

type confirmMsg struct {
	prompt string
	reply  chan<- bool
}

type boardChangedMsg struct{}

// inbox carries controller notifications and store changes into the
// Bubble Tea loop. Store changes coalesce; notes queue.
type inbox struct {
	notes   chan tea.Msg
	changed chan struct{}
	done    chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		notes:   make(chan tea.Msg, 16),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (b *inbox) boardChanged() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

func (b *inbox) post(msg tea.Msg) {
	select {
	case b.notes <- msg:
	case <-b.done:
	}
}

func (b *inbox) close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

// listen waits for the next message; the model re-issues it after each one.
func (b *inbox) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.notes:
			return msg
		case <-b.changed:
			return boardChangedMsg{}
		case <-b.done:
			return nil
		}
	}
}

func (b *inbox) Alert(msg string) { b.post(noteMsg{level: noteAlert, text: msg}) }
func (b *inbox) Warn(msg string)  { b.post(noteMsg{level: noteWarn, text: msg}) }
func (b *inbox) Info(msg string)  { b.post(noteMsg{level: noteInfo, text: msg}) }

// Confirm shows a modal and blocks until the user answers.
func (b *inbox) Confirm(ctx context.Context, prompt string) bool {
	reply := make(chan bool, 1)
	select {
	case b.notes <- confirmMsg{prompt: prompt, reply: reply}:
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	}
}
