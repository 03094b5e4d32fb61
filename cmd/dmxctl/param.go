package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlx/dmxrdm"
)

var getCmd = &cobra.Command{
	Use:   "get <uid> <pid>",
	Short: "Send a GET request for one RDM parameter",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <uid> <pid> <hex-data>",
	Short: "Send a SET request for one RDM parameter",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSet,
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd)
}

func parsePID(s string) (dmxrdm.PID, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("dmxctl: invalid pid %q: %w", s, err)
	}
	return dmxrdm.PID(v), nil
}

func runGet(cmd *cobra.Command, args []string) error {
	uid, err := dmxrdm.ParseUID(args[0])
	if err != nil {
		return err
	}
	pid, err := parsePID(args[1])
	if err != nil {
		return err
	}

	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := port.RDMRequest(ctx, uid, dmxrdm.CCGet, pid, nil)
	if err != nil {
		return fmt.Errorf("dmxctl: get failed: %w", err)
	}
	fmt.Println(hex.EncodeToString(resp))
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	uid, err := dmxrdm.ParseUID(args[0])
	if err != nil {
		return err
	}
	pid, err := parsePID(args[1])
	if err != nil {
		return err
	}
	var pd []byte
	if len(args) == 3 {
		pd, err = hex.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("dmxctl: invalid hex data: %w", err)
		}
	}

	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := port.RDMRequest(ctx, uid, dmxrdm.CCSet, pid, pd)
	if err != nil {
		return fmt.Errorf("dmxctl: set failed: %w", err)
	}
	if len(resp) > 0 {
		fmt.Println(hex.EncodeToString(resp))
	} else {
		fmt.Println("ok")
	}
	return nil
}
