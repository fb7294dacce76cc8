// Package flash gives capture feedback: a white blink over the captured area
// and a shutter sound.
package flash

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/geometry"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Mode selects which effects run
type Mode struct {
	Visual bool
	Sound  bool
}

// ParseMode reads a flash setting. Unknown values disable both effects.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case config.FlashAudio:
		return Mode{Sound: true}
	case config.FlashVideo:
		return Mode{Visual: true}
	case config.FlashBoth:
		return Mode{Visual: true, Sound: true}
	}
	return Mode{}
}

// Enabled reports whether any effect runs
func (m Mode) Enabled() bool {
	return m.Visual || m.Sound
}

// Visual blinks a rectangle and calls done when the fade has finished
type Visual interface {
	Flash(area geometry.Rect, done func())
}

// Sound plays the shutter sound without blocking
type Sound interface {
	Play()
}

// Flasher combines the two effects
type Flasher struct {
	visual Visual
	sound  Sound
}

// New creates a flasher; either effect may be nil
func New(visual Visual, sound Sound) *Flasher {
	return &Flasher{visual: visual, sound: sound}
}

// Run starts the effects selected by mode. done is called once, after the
// visual fade when there is one, otherwise immediately.
func (f *Flasher) Run(mode Mode, area geometry.Rect, done func()) {
	if mode.Sound && f.sound != nil {
		f.sound.Play()
	}
	if mode.Visual && f.visual != nil && !area.Empty() {
		f.visual.Flash(area, done)
		return
	}
	done()
}

// CommandSound plays a freedesktop sound theme event through an external
// player, canberra-gtk-play by default.
type CommandSound struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// DefaultSound is the camera shutter from the sound theme
var DefaultSound = &CommandSound{
	Command: "canberra-gtk-play",
	Args:    []string{"-i", "camera-shutter", "-d", "screengrabber"},
	Timeout: 5 * time.Second,
}

// Play runs the player in the background
func (s *CommandSound) Play() {
	log := logger.WithComponent("flash")
	path, err := exec.LookPath(s.Command)
	if err != nil {
		log.Debug().Str("command", s.Command).Msg("Sound player not installed")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		if err := exec.CommandContext(ctx, path, s.Args...).Run(); err != nil {
			log.Debug().Err(err).Msg("Shutter sound failed")
		}
	}()
}
