// Package tray provides a system tray interface for the power line
// inspection system.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex

	// Items the session status ticker rewrites
	menuToggle     *systray.MenuItem
	menuLastDefect *systray.MenuItem
	menuSession    *systray.MenuItem
}

// New creates a new Tray instance with processing enabled by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when real-time
// processing is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback function to be called when the dashboard
// menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item
// is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("GridWatch")
	systray.SetTooltip("GridWatch Power Line Inspection")

	// Menu layout
	t.menuToggle = systray.AddMenuItem("● Processing", "Toggle real-time defect detection")
	systray.AddSeparator()

	t.menuSession = systray.AddMenuItem("Session: idle", "Inspection session state")
	t.menuSession.Disable()
	t.menuLastDefect = systray.AddMenuItem("Last: none", "Last detected defect")
	t.menuLastDefect.Disable()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit GridWatch")

	// Click handling runs off the systray thread
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	// Nothing to release; callbacks own their resources
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	// Reflect the new state in the menu text
	if enabled {
		t.menuToggle.SetTitle("● Processing")
	} else {
		t.menuToggle.SetTitle("○ Paused")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Invoke outside the lock so callbacks may call back into the tray
	if callback != nil {
		callback(enabled)
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastDefect updates the last defect display in the menu.
func (t *Tray) SetLastDefect(label string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastDefect != nil {
		if label == "" {
			t.menuLastDefect.SetTitle("Last: none")
		} else {
			t.menuLastDefect.SetTitle("Last: " + label)
		}
	}
}

// SetSessionState updates the session state display in the menu.
func (t *Tray) SetSessionState(state string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuSession != nil {
		t.menuSession.SetTitle("Session: " + state)
	}
}

// IsEnabled returns the current processing toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
