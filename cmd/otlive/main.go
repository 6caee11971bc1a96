package main

import (
	"os"

	"otterlive/internal/otlivecli"
)

func main() {
	if err := otlivecli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
