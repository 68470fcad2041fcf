// Package tray renders the system tray icon and menu.
package tray

import (
	"github.com/getlantern/systray"

	"github.com/voxpaste/voxpaste/internal/state"
)

// Callbacks holds the menu event handlers.
type Callbacks struct {
	// OnToggleRecording is invoked by the start/stop menu item.
	OnToggleRecording func()
	// OnPolishToggle flips the AI polish setting and returns the new value.
	OnPolishToggle func() bool
	// OnQuit is invoked by the quit item, before the tray exits.
	OnQuit func()
}

// Tray owns the tray icon and menu items.
type Tray struct {
	callbacks     Callbacks
	polishEnabled bool

	status *systray.MenuItem
	toggle *systray.MenuItem
	polish *systray.MenuItem
	quit   *systray.MenuItem
}

// New creates a Tray. polishEnabled sets the initial checkbox state.
func New(callbacks Callbacks, polishEnabled bool) *Tray {
	return &Tray{callbacks: callbacks, polishEnabled: polishEnabled}
}

// Run starts the tray event loop. Blocking; returns when Quit is chosen.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, nil)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconIdle)
	systray.SetTitle("VoxPaste")
	systray.SetTooltip("VoxPaste - hold the shortcut and speak")

	t.status = systray.AddMenuItem("Ready", "")
	t.status.Disable()

	systray.AddSeparator()
	t.toggle = systray.AddMenuItem("Start Recording", "Toggle hands-free recording")
	t.polish = systray.AddMenuItemCheckbox("AI Polish", "Clean up transcripts with the language model", t.polishEnabled)
	systray.AddSeparator()
	t.quit = systray.AddMenuItem("Quit", "Quit VoxPaste")

	go t.handleMenuEvents()
}

func (t *Tray) handleMenuEvents() {
	for {
		select {
		case <-t.toggle.ClickedCh:
			if t.callbacks.OnToggleRecording != nil {
				t.callbacks.OnToggleRecording()
			}
		case <-t.polish.ClickedCh:
			if t.callbacks.OnPolishToggle != nil {
				if t.callbacks.OnPolishToggle() {
					t.polish.Check()
				} else {
					t.polish.Uncheck()
				}
			}
		case <-t.quit.ClickedCh:
			if t.callbacks.OnQuit != nil {
				t.callbacks.OnQuit()
			}
			systray.Quit()
			return
		}
	}
}

// Quit exits the tray event loop, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetState updates the icon and menu to reflect the recording state.
// Safe to call from any goroutine once the tray is ready.
func (t *Tray) SetState(s state.State) {
	if t.status == nil {
		return
	}
	switch s {
	case state.Recording:
		systray.SetIcon(iconRecording)
		t.status.SetTitle("Recording...")
		t.toggle.SetTitle("Stop Recording")
	case state.Processing:
		systray.SetIcon(iconProcessing)
		t.status.SetTitle("Processing...")
		t.toggle.SetTitle("Stop Recording")
		t.toggle.Disable()
	default:
		systray.SetIcon(iconIdle)
		t.status.SetTitle("Ready")
		t.toggle.SetTitle("Start Recording")
		t.toggle.Enable()
	}
}
