package config

import "fmt"

// Settings is the read side consumed by the capture pipeline
type Settings interface {
	GetString(key string) string
	GetBool(key string) bool
}

// Snapshot is an immutable flat copy of the settings taken at one instant.
// Invalid enum values read as their disabled form.
type Snapshot map[string]any

var _ Settings = Snapshot(nil)

func newSnapshot(c *Config) Snapshot {
	s := Snapshot(c.Flatten())
	if !oneOf(c.Clipboard, ClipboardNone, ClipboardURI, ClipboardImage) {
		s[KeyClipboard] = ClipboardNone
	}
	if !oneOf(c.Flash, FlashNone, FlashAudio, FlashVideo, FlashBoth) {
		s[KeyFlash] = FlashNone
	}
	return s
}

// GetString returns the value for key, "" when missing
func (s Snapshot) GetString(key string) string {
	switch v := s[canonicalKey(key)].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// GetBool returns the value for key, false when missing or not a bool
func (s Snapshot) GetBool(key string) bool {
	b, _ := s[canonicalKey(key)].(bool)
	return b
}

// GetInt returns the value for key, 0 when missing or not an int
func (s Snapshot) GetInt(key string) int {
	i, _ := s[canonicalKey(key)].(int)
	return i
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
