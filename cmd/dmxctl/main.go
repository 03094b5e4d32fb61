// dmxctl is a small diagnostic CLI for exercising a dmxrdm port against
// either an in-memory mock or a real RS-485-over-USB adapter, mirroring
// Thermoquad-heliostat's cmd/root.go + main.go split (a thin main.go that
// hands off to cobra's Execute). spec.md §1 keeps the concrete CLI out of
// the core's scope; this is the ambient diagnostic entry point every
// example repo in the pack carries alongside its protocol/transport code.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
