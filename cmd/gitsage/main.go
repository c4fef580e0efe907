package main

import (
	"os"

	"github.com/ishaan812/gitsage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
