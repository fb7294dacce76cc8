package indicator

import (
	"strings"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

// KeyRegistrar binds global shortcuts, see keybind.Registrar
type KeyRegistrar interface {
	Register(action, combo string, handler func()) error
	UnregisterAll()
}

// bindingKeys maps each action to the setting holding its shortcut
var bindingKeys = map[grabber.Strategy]string{
	grabber.Desktop:          config.KeyBindDesktop,
	grabber.MonitorHighlight: config.KeyBindMonitor,
	grabber.WindowHighlight:  config.KeyBindWindow,
	grabber.FreeDrag:         config.KeyBindSelection,
}

// BindKeys registers the configured shortcut of every action. A shortcut
// that cannot be grabbed is logged and skipped. Safe from any goroutine;
// the actions themselves are posted to the event loop.
func (i *Indicator) BindKeys(reg KeyRegistrar) {
	log := logger.WithComponent("indicator")
	s := i.settings()

	for _, strategy := range grabber.Strategies {
		strategy := strategy
		combo := s.GetString(bindingKeys[strategy])
		err := reg.Register(strategy.String(), combo, func() {
			i.post(func() {
				if err := i.Start(strategy); err != nil {
					log.Error().Err(err).Str("action", strategy.String()).Msg("Shortcut action failed")
				}
			})
		})
		if err != nil {
			log.Warn().Err(err).Str("action", strategy.String()).Msg("Shortcut not registered")
		}
	}
}

// WatchKeys re-binds shortcuts whenever a key-* setting changes, until
// changes is closed
func (i *Indicator) WatchKeys(reg KeyRegistrar, changes <-chan string) {
	for key := range changes {
		if !strings.HasPrefix(key, "key-") {
			continue
		}
		logger.WithComponent("indicator").Debug().Str("key", key).Msg("Shortcut setting changed")
		i.BindKeys(reg)
	}
}
