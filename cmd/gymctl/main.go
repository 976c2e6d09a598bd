// Package main is the entry point for gymctl.
package main

import (
	"os"

	"github.com/rryowa/gymsession/cmd/gymctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
