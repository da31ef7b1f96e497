// Package main is the entry point for the cvparse CLI.
package main

import (
	"os"

	"github.com/jmylchreest/cvparse/cmd/cvparse/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
