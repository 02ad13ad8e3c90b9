package main

import (
	"os"

	"github.com/nhle/kanban/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
