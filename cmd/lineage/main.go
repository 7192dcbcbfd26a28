package main

import (
	"os"

	"github.com/oakmoss/lineage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
