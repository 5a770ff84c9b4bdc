// Package main provides the entry point for the bugfiler CLI.
package main

import (
	"os"

	"github.com/randalmurphal/bugfiler/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
