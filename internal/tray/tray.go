// Package tray provides the system tray menu of palak.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/palak/internal/blink"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	left       int
	right      int
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLeft   *systray.MenuItem
	menuRight  *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
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

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(Title(0))
	systray.SetTooltip("palak blink detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle blink detection")
	systray.AddSeparator()

	t.menuLeft = systray.AddMenuItem(eyeTitle(blink.EyeLeft, t.left), "Blinks of the left eye")
	t.menuLeft.Disable()
	t.menuRight = systray.AddMenuItem(eyeTitle(blink.EyeRight, t.right), "Blinks of the right eye")
	t.menuRight.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit palak")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

// RecordBlink counts a closed blink and refreshes the title and eye items.
// It is safe to call before the tray is ready.
func (t *Tray) RecordBlink(ev blink.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Eye == blink.EyeRight {
		t.right++
	} else {
		t.left++
	}

	if t.menuLeft == nil {
		return
	}
	systray.SetTitle(Title(t.left + t.right))
	t.menuLeft.SetTitle(eyeTitle(blink.EyeLeft, t.left))
	t.menuRight.SetTitle(eyeTitle(blink.EyeRight, t.right))
}

// SetEnabled updates the toggle without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Counts returns the blinks recorded per eye.
func (t *Tray) Counts() (left, right int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.left, t.right
}

// Title is the tray title for a blink total.
func Title(blinks int) string {
	if blinks == 0 {
		return "palak"
	}
	return fmt.Sprintf("palak · %d", blinks)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func eyeTitle(eye blink.Eye, n int) string {
	return fmt.Sprintf("%s eye: %d", eye, n)
}
