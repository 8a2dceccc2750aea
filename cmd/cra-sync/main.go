package main

import (
	"fmt"
	"os"

	"github.com/cra-hub/cra-sync/cmd/cra-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
