package main

import (
	"os"

	"github.com/fintellect/nexus/internal/nexus"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := nexus.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
