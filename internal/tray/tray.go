// Package tray shows the indicator menu in the system tray
package tray

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/getlantern/systray"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

const title = "ScreenGrabber"

// Actions is the indicator side of the menu
type Actions interface {
	Post(fn func())
	Trigger(action string) error
}

// Settings is the config side of the menu
type Settings interface {
	Snapshot() config.Snapshot
	Set(key, value string) error
}

// Tray owns the tray icon and its menu
type Tray struct {
	actions  Actions
	settings Settings
	onQuit   func()
}

// New creates a tray. onQuit runs after the menu's Quit item is used.
func New(actions Actions, settings Settings, onQuit func()) *Tray {
	return &Tray{actions: actions, settings: settings, onQuit: onQuit}
}

// Run shows the icon and blocks until Quit. Must be called from the main
// goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and makes Run return
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	log := logger.WithComponent("tray")

	systray.SetIcon(Icon())
	systray.SetTitle(title)
	systray.SetTooltip(title)

	for _, strategy := range grabber.Strategies {
		item := systray.AddMenuItem(strategy.Title(), "Capture "+strategy.String())
		go t.listen(item, strategy.String())
	}

	systray.AddSeparator()
	snap := t.settings.Snapshot()
	miNotify := systray.AddMenuItemCheckbox("Notifications", "Show a notification after each capture", snap.GetBool(config.KeyNotifications))
	miShadows := systray.AddMenuItemCheckbox("Window shadows", "Include client-side shadows in window captures", snap.GetBool(config.KeyShadows))
	go t.toggle(miNotify, config.KeyNotifications)
	go t.toggle(miShadows, config.KeyShadows)

	systray.AddSeparator()
	miQuit := systray.AddMenuItem("Quit", "Quit ScreenGrabber")
	go func() {
		<-miQuit.ClickedCh
		log.Info().Msg("Quit requested from tray")
		systray.Quit()
	}()

	log.Info().Msg("Tray ready")
}

func (t *Tray) onExit() {
	if t.onQuit != nil {
		t.onQuit()
	}
}

func (t *Tray) listen(item *systray.MenuItem, action string) {
	for range item.ClickedCh {
		t.activate(action)
	}
}

// activate runs action on the event loop
func (t *Tray) activate(action string) {
	t.actions.Post(func() {
		if err := t.actions.Trigger(action); err != nil {
			logger.WithComponent("tray").Error().Err(err).Str("action", action).Msg("Menu action failed")
		}
	})
}

func (t *Tray) toggle(item *systray.MenuItem, key string) {
	for range item.ClickedCh {
		on := !item.Checked()
		if err := t.flip(key, on); err != nil {
			continue
		}
		if on {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) flip(key string, on bool) error {
	value := "false"
	if on {
		value = "true"
	}
	if err := t.settings.Set(key, value); err != nil {
		logger.WithComponent("tray").Error().Err(err).Str("key", key).Msg("Failed to update setting")
		return err
	}
	return nil
}

// Icon draws the 22x22 tray icon as PNG: a camera body with a lens
func Icon() []byte {
	const size = 22
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fg := color.NRGBA{R: 0xee, G: 0xee, B: 0xec, A: 0xff}

	for y := 6; y < 18; y++ {
		for x := 2; x < 20; x++ {
			img.Set(x, y, fg)
		}
	}
	// viewfinder bump
	for y := 4; y < 6; y++ {
		for x := 7; x < 13; x++ {
			img.Set(x, y, fg)
		}
	}
	// lens hole
	for y := 8; y < 16; y++ {
		for x := 7; x < 15; x++ {
			dx, dy := 2*x-21, 2*y-23
			if dx*dx+dy*dy <= 49 {
				img.Set(x, y, color.NRGBA{})
			}
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		logger.WithComponent("tray").Warn().Err(err).Msg("Failed to encode tray icon")
		return nil
	}
	return buf.Bytes()
}
