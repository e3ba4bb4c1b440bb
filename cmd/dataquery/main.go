// Package main is the entry point for the dataquery CLI binary.
package main

import (
	"os"

	cli "dataquery/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
