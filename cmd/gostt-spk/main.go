package main

import (
	"os"

	"github.com/chaz8081/gostt-spk/cmd/gostt-spk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
