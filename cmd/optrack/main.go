package main

import (
	"os"

	"github.com/rustyeddy/optrack/cmd/optrack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
