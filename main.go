package main

import (
	"os"

	"github.com/pulseloop/pulseloop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
