package main

import (
	"os"

	"github.com/aevon-lab/aevon-rollup/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
