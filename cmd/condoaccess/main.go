package main

import (
	"os"

	"github.com/tech-arch1tect/condoaccess/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
