// Package main is the entry point for the qgate CLI.
package main

import (
	"os"

	"github.com/AndreyAkinshin/qgate/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
