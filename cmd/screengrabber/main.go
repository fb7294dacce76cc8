package main

import (
	"github.com/bryanchriswhite/ScreenGrabber/cmd/screengrabber/commands"
	"github.com/bryanchriswhite/ScreenGrabber/internal/keybind/xkey"
)

func main() {
	commands.SetGrabFunc(xkey.New)
	commands.Execute()
}
