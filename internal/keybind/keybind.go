// Package keybind registers the global capture shortcuts
package keybind

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// Modifier is a key modifier in a combo
type Modifier int

const (
	ModCtrl Modifier = iota
	ModShift
	ModAlt
	ModSuper
	ModNumLock
	ModCapsLock
)

var modifierNames = map[Modifier]string{
	ModCtrl:     "ctrl",
	ModShift:    "shift",
	ModAlt:      "alt",
	ModSuper:    "super",
	ModNumLock:  "numlock",
	ModCapsLock: "capslock",
}

func (m Modifier) String() string { return modifierNames[m] }

// Grab is one global key grab
type Grab interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
}

// GrabFunc creates the grab for one modifier set and key name
type GrabFunc func(mods []Modifier, key string) (Grab, error)

type binding struct {
	combo string
	grabs []Grab
	stop  chan struct{}
}

// Registrar owns one binding per action name
type Registrar struct {
	mu       sync.Mutex
	bindings map[string]*binding
	newGrab  GrabFunc
}

// NewRegistrar creates an empty registrar that grabs keys through newGrab
func NewRegistrar(newGrab GrabFunc) *Registrar {
	return &Registrar{
		bindings: make(map[string]*binding),
		newGrab:  newGrab,
	}
}

// Register binds combo (e.g. "ctrl+shift+2") to handler under action,
// replacing any previous binding of that action. An empty combo only
// removes the binding. handler runs on the hotkey goroutine; post to the
// event loop from it.
func (r *Registrar) Register(action, combo string, handler func()) error {
	r.Unregister(action)

	combo = strings.TrimSpace(combo)
	if combo == "" {
		return nil
	}

	mods, key, err := Parse(combo)
	if err != nil {
		return fmt.Errorf("failed to parse hotkey %q for %s: %w", combo, action, err)
	}

	b := &binding{combo: combo, stop: make(chan struct{})}
	for _, variant := range expandModifiers(mods) {
		g, err := r.newGrab(variant, key)
		if err == nil {
			err = g.Register()
		}
		if err != nil {
			for _, prev := range b.grabs {
				prev.Unregister()
			}
			return fmt.Errorf("failed to register hotkey %q for %s: %w", combo, action, err)
		}
		b.grabs = append(b.grabs, g)
	}
	for _, g := range b.grabs {
		go listen(g, b.stop, handler)
	}

	r.mu.Lock()
	r.bindings[action] = b
	r.mu.Unlock()

	logger.WithComponent("keybind").Info().
		Str("action", action).
		Str("hotkey", combo).
		Msg("Registered hotkey")
	return nil
}

func listen(g Grab, stop <-chan struct{}, handler func()) {
	keydown := g.Keydown()
	for {
		select {
		case <-stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			handler()
		}
	}
}

// Unregister removes the binding of action
func (r *Registrar) Unregister(action string) {
	r.mu.Lock()
	b, ok := r.bindings[action]
	delete(r.bindings, action)
	r.mu.Unlock()
	if !ok {
		return
	}

	close(b.stop)
	for _, g := range b.grabs {
		if err := g.Unregister(); err != nil {
			logger.WithComponent("keybind").Debug().Err(err).Str("action", action).Msg("Unregister failed")
		}
	}
}

// UnregisterAll removes every binding
func (r *Registrar) UnregisterAll() {
	r.mu.Lock()
	actions := make([]string, 0, len(r.bindings))
	for a := range r.bindings {
		actions = append(actions, a)
	}
	r.mu.Unlock()
	for _, a := range actions {
		r.Unregister(a)
	}
}

// Combo returns the hotkey bound to action, "" if none
func (r *Registrar) Combo(action string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[action]; ok {
		return b.combo
	}
	return ""
}

// Parse converts a string combination (e.g. "ctrl+alt+v") into modifiers
// and a key name
func Parse(combo string) ([]Modifier, string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")

	key := strings.TrimSpace(parts[len(parts)-1])
	if !IsKey(key) {
		return nil, "", fmt.Errorf("unsupported key: %q", key)
	}

	var modifiers []Modifier
	for _, part := range parts[:len(parts)-1] {
		mod, ok := modifierFor(strings.TrimSpace(part))
		if !ok {
			return nil, "", fmt.Errorf("unsupported modifier: %q", part)
		}
		modifiers = append(modifiers, mod)
	}
	return modifiers, key, nil
}

func modifierFor(name string) (Modifier, bool) {
	switch name {
	case "ctrl", "control":
		return ModCtrl, true
	case "alt":
		return ModAlt, true
	case "shift":
		return ModShift, true
	case "super", "win", "cmd":
		return ModSuper, true
	}
	return 0, false
}
