package main

import (
	"os"

	"dagvault/cmd/dv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
