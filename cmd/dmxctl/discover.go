package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlx/dmxrdm"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run RDM discovery and print every responding UID",
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count := 0
	err = port.Discover(ctx, func(uid dmxrdm.UID) {
		count++
		fmt.Println(uid.String())
	})
	if err != nil {
		return fmt.Errorf("dmxctl: discovery failed: %w", err)
	}
	fmt.Printf("%d device(s) found\n", count)
	return nil
}
