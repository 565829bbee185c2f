// Package main is the entry point of the reposcore CLI.
package main

import (
	"fmt"
	"os"

	"github.com/huangsam/reposcore/cmd"
	"github.com/huangsam/reposcore/internal/iocache"
)

func main() {
	err := cmd.Execute()

	iocache.CloseCaching()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		fmt.Fprintln(os.Stderr, "Error stopping profiling:", stopErr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
