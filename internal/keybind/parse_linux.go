//go:build linux

package keybind

// expandModifiers registers each combination again under the lock
// modifiers, otherwise XGrabKey misses presses with NumLock or CapsLock on
func expandModifiers(modifiers []Modifier) [][]Modifier {
	with := func(extra ...Modifier) []Modifier {
		return append(append([]Modifier(nil), modifiers...), extra...)
	}
	return [][]Modifier{
		with(),
		with(ModNumLock),
		with(ModCapsLock),
		with(ModNumLock, ModCapsLock),
	}
}
