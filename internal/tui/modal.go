package tui

import (
	"sync"

	"github.com/rivo/tview"
)

// Modal is a popup dialog showing the progress of a long running operation.
// It implements ui.Sink.
type Modal struct {
	mu      sync.Mutex
	message string
	updated bool
	isDone  bool

	name string
	view *tview.Modal
	t    *TUI
}

func (t *TUI) newModal(name string, title string, message string) *Modal {
	m := &Modal{
		name:    name,
		message: message,
		view:    tview.NewModal().SetText(message),
		t:       t,
	}

	m.view.SetTitle(title)
	m.view.SetDoneFunc(func(_ int, _ string) {
		t.closeModal(m)
	})

	t.pages.AddPage(name, m.view, true, true)

	return m
}

// Update sets the current message of the modal dialog.
func (m *Modal) Update(message string) {
	m.mu.Lock()
	m.message = message
	m.updated = true
	m.mu.Unlock()

	m.t.queue(func() {
		m.view.SetText(message)
	})
}

// Done indicates that the operation completed. A modal which was given a
// message stays up until dismissed, otherwise it's removed right away.
func (m *Modal) Done() {
	m.mu.Lock()
	m.isDone = true
	dismissable := m.updated
	m.mu.Unlock()

	m.t.queue(func() {
		if dismissable {
			m.view.AddButtons([]string{"OK"})
			m.t.app.SetFocus(m.view)

			return
		}

		m.t.closeModal(m)
	})
}

// Message returns the message currently shown.
func (m *Modal) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.message
}

// IsDone reports whether the operation completed.
func (m *Modal) IsDone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.isDone
}
