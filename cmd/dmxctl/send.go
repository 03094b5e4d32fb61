package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <hex-slots>",
	Short: "Transmit a raw DMX frame",
	Long: `Transmit a DMX frame whose slots are the given hex bytes (start code 0x00
is prepended automatically). Example: dmxctl send ff0080`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	slots, err := hex.DecodeString(args[0])
	if err != nil {
		return fmt.Errorf("dmxctl: invalid hex slots: %w", err)
	}
	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	frame := append([]byte{0x00}, slots...)
	if err := port.Send(frame, false); err != nil {
		return fmt.Errorf("dmxctl: send failed: %w", err)
	}
	fmt.Printf("sent %d slots\n", len(slots))
	return nil
}
