//go:build linux

package xkey

import (
	"golang.design/x/hotkey"

	"github.com/bryanchriswhite/ScreenGrabber/internal/keybind"
)

// capsLockMask is the X11 LockMask; NumLock is usually Mod2
const capsLockMask hotkey.Modifier = 1 << 1

func modifierFor(m keybind.Modifier) (hotkey.Modifier, bool) {
	switch m {
	case keybind.ModCtrl:
		return hotkey.ModCtrl, true
	case keybind.ModShift:
		return hotkey.ModShift, true
	case keybind.ModAlt:
		return hotkey.Mod1, true
	case keybind.ModSuper:
		return hotkey.Mod4, true
	case keybind.ModNumLock:
		return hotkey.Mod2, true
	case keybind.ModCapsLock:
		return capsLockMask, true
	}
	return 0, false
}
