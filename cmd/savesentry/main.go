// Package main is the entry point for the savesentry CLI.
package main

import (
	"os"

	"github.com/savesentry/savesentry/cmd/savesentry/commands"
)

func main() {
	os.Exit(commands.Execute())
}
