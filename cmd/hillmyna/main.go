package main

import (
	"os"

	"github.com/codebuildervaibhav/hillmyna/cmd/hillmyna/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
