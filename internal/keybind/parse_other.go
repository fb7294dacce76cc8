//go:build !linux

package keybind

func expandModifiers(modifiers []Modifier) [][]Modifier {
	return [][]Modifier{modifiers}
}
