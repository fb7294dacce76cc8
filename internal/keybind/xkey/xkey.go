// Package xkey grabs keybind combos on the X server through
// golang.design/x/hotkey. Importing it needs a reachable display.
package xkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/bryanchriswhite/ScreenGrabber/internal/keybind"
)

type grab struct {
	hk   *hotkey.Hotkey
	down chan struct{}

	mu   sync.Mutex
	stop chan struct{}
}

var _ keybind.Grab = (*grab)(nil)

// New builds an unregistered grab; it satisfies keybind.GrabFunc
func New(mods []keybind.Modifier, key string) (keybind.Grab, error) {
	k, ok := keyMap[key]
	if !ok {
		return nil, fmt.Errorf("unsupported key: %q", key)
	}
	hmods := make([]hotkey.Modifier, 0, len(mods))
	for _, m := range mods {
		hm, ok := modifierFor(m)
		if !ok {
			return nil, fmt.Errorf("unsupported modifier: %s", m)
		}
		hmods = append(hmods, hm)
	}
	return &grab{hk: hotkey.New(hmods, k), down: make(chan struct{}, 1)}, nil
}

func (g *grab) Register() error {
	if err := g.hk.Register(); err != nil {
		return err
	}
	g.mu.Lock()
	g.stop = make(chan struct{})
	stop := g.stop
	g.mu.Unlock()

	go g.forward(stop)
	return nil
}

func (g *grab) Unregister() error {
	g.mu.Lock()
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	g.mu.Unlock()
	return g.hk.Unregister()
}

func (g *grab) Keydown() <-chan struct{} { return g.down }

// forward drops presses while the previous one is still unread
func (g *grab) forward(stop <-chan struct{}) {
	keydown := g.hk.Keydown()
	for {
		select {
		case <-stop:
			return
		case <-keydown:
			select {
			case g.down <- struct{}{}:
			default:
			}
		}
	}
}
