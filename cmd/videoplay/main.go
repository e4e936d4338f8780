package main

import (
	"os"

	"github.com/egnor/video-play/cmd/videoplay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
