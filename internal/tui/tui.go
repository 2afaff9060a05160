// Package tui implements the console interface of the daemon.
package tui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/ui"
)

const resetPage = "reset"

// StatusFunc returns the current status of the system.
type StatusFunc func() api.SystemStatus

// ResetFunc starts a factory reset reporting to the given UI context and progress surface.
type ResetFunc func(uictx *ui.Context, progress *ui.Progress) error

// TUI represents a terminal user interface.
type TUI struct {
	app      *tview.Application
	frame    *tview.Frame
	pages    *tview.Pages
	screen   tcell.Screen
	textView *tview.TextView

	status     StatusFunc
	newContext func() *ui.Context
	onReset    ResetFunc

	mu       sync.Mutex
	running  bool
	modal    *Modal
	uictx    *ui.Context
	progress *ui.Progress
}

// NewTUI constructs a new TUI application showing the system status and recent
// log entries on the given screen.
func NewTUI(screen tcell.Screen, status StatusFunc, newContext func() *ui.Context, onReset ResetFunc) *TUI {
	ret := &TUI{
		screen:     screen,
		status:     status,
		newContext: newContext,
		onReset:    onReset,
	}

	// Define a text view to show recent log entries.
	ret.textView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWordWrap(true).
		SetChangedFunc(func() {
			if ret.isRunning() {
				ret.app.Draw()
			}
		})
	ret.textView.SetBorder(true)

	// Define a frame to hold the TUI's primary content.
	ret.frame = tview.NewFrame(ret.textView).SetBorders(0, 0, 1, 1, 0, 0)

	// Define a set of pages so we can present modal popups.
	ret.pages = tview.NewPages().AddPage("frame", ret.frame, true, true)

	// Define the TUI application.
	ret.app = tview.NewApplication().SetScreen(screen).SetRoot(ret.pages, true)
	ret.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyRune && ev.Rune() == 'r' && ret.Modal() == nil && !ret.pages.HasPage("confirm") {
			ret.confirmReset()

			return nil
		}

		return ev
	})

	return ret
}

// Write implements the Writer interface, so the TUI can back a log handler.
func (t *TUI) Write(p []byte) (int, error) {
	return fmt.Fprint(t.textView, string(p))
}

func (t *TUI) isRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

// queue runs fn on the application's event loop, or right away if it isn't running.
func (t *TUI) queue(fn func()) {
	if t.isRunning() {
		t.app.QueueUpdateDraw(fn)

		return
	}

	fn()
}

// Run starts the TUI application until ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	// Periodically re-draw the header and footer.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			t.app.QueueUpdateDraw(t.redrawScreen)

			select {
			case <-ctx.Done():
				t.app.Stop()

				return
			case <-ticker.C:
			}
		}
	}()

	return t.app.Run()
}

// Modal returns the factory reset dialog currently shown, if any.
func (t *TUI) Modal() *Modal {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.modal
}

func (t *TUI) confirmReset() {
	confirm := tview.NewModal().
		SetText("Stop all services, reinstall the bundled components and erase all settings?").
		AddButtons([]string{"Reset", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			t.pages.RemovePage("confirm")

			if label == "Reset" {
				_ = t.StartReset()
			}
		})

	t.pages.AddPage("confirm", confirm, true, true)
}

// StartReset opens the progress dialog and starts a factory reset reporting to it.
func (t *TUI) StartReset() error {
	uictx := t.newContext()

	msg, err := uictx.Localize(ui.MsgResetting)
	if err != nil {
		msg = ui.MsgResetting
	}

	modal := t.newModal(resetPage, "Factory reset", msg)
	progress := ui.NewProgress(modal)

	// The reset only holds weak references, the dialog keeps both alive.
	t.mu.Lock()
	t.modal = modal
	t.uictx = uictx
	t.progress = progress
	t.mu.Unlock()

	err = t.onReset(uictx, progress)
	if err != nil {
		progress.ShowMessage(err.Error())
		progress.CloseProgress()

		return err
	}

	return nil
}

// closeModal removes a dialog and tears down the UI context it was showing progress for.
func (t *TUI) closeModal(m *Modal) {
	t.pages.RemovePage(m.name)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.modal != m {
		return
	}

	t.uictx.Close()
	t.progress.Destroy()

	t.modal = nil
	t.uictx = nil
	t.progress = nil
}

// redrawScreen clears and re-draws the header and footer of the TUI frame.
func (t *TUI) redrawScreen() {
	st := t.status()

	t.frame.Clear()

	t.frame.AddText("veild "+st.Version, true, tview.AlignCenter, tcell.ColorWhite)
	t.frame.AddText(time.Now().UTC().Format("2006-01-02 15:04 UTC"), true, tview.AlignRight, tcell.ColorWhite)

	consoleWidth, _ := t.screen.Size()

	services := []string{}
	for _, name := range slices.Sorted(maps.Keys(st.Services)) {
		services = append(services, name+"("+st.Services[name]+")")
	}

	components := []string{}

	for _, comp := range st.Components {
		if comp.Installed {
			components = append(components, comp.Name+"("+comp.InstalledVersion+")")
		} else {
			components = append(components, comp.Name+"(missing)")
		}
	}

	t.frame.AddText("Press r to factory reset", false, tview.AlignRight, tcell.ColorGray)

	for _, line := range wrapFooterText("Services", strings.Join(services, ", "), consoleWidth) {
		t.frame.AddText(line, false, tview.AlignLeft, tcell.ColorWhite)
	}

	for _, line := range wrapFooterText("Components", strings.Join(components, ", "), consoleWidth) {
		t.frame.AddText(line, false, tview.AlignLeft, tcell.ColorWhite)
	}

	if !st.ModulesInstalled {
		t.frame.AddText("WARNING: Bundled components aren't installed!", false, tview.AlignLeft, tcell.ColorRed)
	}
}

// Performs a very basic text wrapping at a given maximum length, only on spaces. Returns a
// reversed array, since that is how the frame's footer logic expects things.
func wrapFooterText(label string, text string, maxLineLength int) []string {
	ret := []string{}

	currentLine := "[green]" + label + ":[white] "
	currentLen := len(label) + 2

	for _, word := range strings.Split(text, " ") {
		if currentLen+len(word) > maxLineLength && currentLen > 0 {
			ret = append(ret, currentLine)
			currentLine = ""
			currentLen = 0
		}

		currentLine += word + " "
		currentLen += len(word) + 1
	}

	if len(currentLine) > 0 {
		ret = append(ret, currentLine)
	}

	slices.Reverse(ret)

	return ret
}
