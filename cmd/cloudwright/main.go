// Package main is the entry point for the cloudwright CLI.
package main

import (
	"os"

	"cloudwright/cmd/cloudwright/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
