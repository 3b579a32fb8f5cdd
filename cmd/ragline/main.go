// Package main provides the entry point for the ragline CLI.
package main

import (
	"os"

	"github.com/ragline/ragline/cmd/ragline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
