//go:build !linux

package xkey

import (
	"golang.design/x/hotkey"

	"github.com/bryanchriswhite/ScreenGrabber/internal/keybind"
)

func modifierFor(m keybind.Modifier) (hotkey.Modifier, bool) {
	switch m {
	case keybind.ModCtrl:
		return hotkey.ModCtrl, true
	case keybind.ModShift:
		return hotkey.ModShift, true
	}
	return 0, false
}
