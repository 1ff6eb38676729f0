// Package main is the entry point for the aida CLI binary.
package main

import (
	"os"

	"aida/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
