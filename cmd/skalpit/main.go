package main

import (
	"os"

	"github.com/culda/skalpit/cmd/skalpit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
