package main

import (
	"os"

	"github.com/spherical/pptx-builder/cmd/pptx-builder/commands"
	"github.com/spherical/pptx-builder/cmd/pptx-builder/ui"
)

var version = "0.1.0"

func main() {
	commands.Version = version
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
