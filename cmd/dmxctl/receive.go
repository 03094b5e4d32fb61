package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlx/dmxrdm/internal/frame"
)

var receiveTimeout time.Duration

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Wait for one incoming frame and print it",
	RunE:  runReceive,
}

func init() {
	receiveCmd.Flags().DurationVar(&receiveTimeout, "timeout", 3*time.Second, "how long to wait for a frame")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive(cmd *cobra.Command, args []string) error {
	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	ev, data := port.Receive(receiveTimeout)
	fmt.Printf("size=%d kind=%s err=%s\n", ev.Size, kindString(ev.Kind), errString(ev.Err))
	if len(data) > 0 {
		fmt.Println(hex.EncodeToString(data))
	}
	return nil
}

func kindString(k frame.Kind) string {
	switch k {
	case frame.KindDMX:
		return "dmx"
	case frame.KindRDM:
		return "rdm"
	case frame.KindRDMDiscResp:
		return "rdm-discovery-response"
	default:
		return "none"
	}
}

func errString(e frame.RxError) string {
	switch e {
	case frame.RxErrNone:
		return "none"
	case frame.RxErrOverflow:
		return "overflow"
	case frame.RxErrFraming:
		return "framing"
	case frame.RxErrCollision:
		return "collision"
	case frame.RxErrTimeout:
		return "timeout"
	case frame.RxErrChecksum:
		return "checksum"
	case frame.RxErrMalformedLength:
		return "malformed-length"
	default:
		return "unknown"
	}
}
