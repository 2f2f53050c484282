package main

import (
	"os"

	"github.com/changelog-weaver/weaver/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
