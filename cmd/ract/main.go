package main

import (
	"os"

	"github.com/ract-lang/ract/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
