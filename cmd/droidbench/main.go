package main

import (
	"os"

	"github.com/Iron-Ham/droidbench/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
