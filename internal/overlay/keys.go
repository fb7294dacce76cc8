package overlay

// KeyCode is a layout independent key identifier. Printable keys use their
// Unicode code point; Escape, Return and friends use their ASCII control code.
type KeyCode uint32

// Well-known key codes
const (
	KeyNone      KeyCode = 0
	KeyBackspace KeyCode = 0x08
	KeyTab       KeyCode = 0x09
	KeyReturn    KeyCode = 0x0d
	KeyEscape    KeyCode = 0x1b
	KeyDelete    KeyCode = 0x7f
)

// unicodeKeysymFlag marks keysyms that directly encode a code point
const unicodeKeysymFlag = 0x01000000

// KeyFromKeysym decodes an X11 keysym into a KeyCode. Unknown function keys
// decode to KeyNone.
func KeyFromKeysym(sym uint32) KeyCode {
	switch {
	case sym >= 0x20 && sym <= 0xff:
		return KeyCode(sym)
	case sym&0xff000000 == unicodeKeysymFlag:
		return KeyCode(sym &^ unicodeKeysymFlag)
	}

	// TTY function keys live at 0xff00 + their control code
	switch sym {
	case 0xff08, 0xff09, 0xff0d, 0xff1b:
		return KeyCode(sym - 0xff00)
	case 0xff8d: // KP_Enter
		return KeyReturn
	case 0xffff:
		return KeyDelete
	}
	return KeyNone
}
