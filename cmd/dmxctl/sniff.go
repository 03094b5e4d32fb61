package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlx/dmxrdm/sniffer"
)

var (
	sniffDuration time.Duration
	sniffOut      string
	sniffCap      int
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Record BREAK/MAB pulse widths for a duration and export them as CBOR",
	RunE:  runSniff,
}

func init() {
	sniffCmd.Flags().DurationVar(&sniffDuration, "duration", 5*time.Second, "capture window")
	sniffCmd.Flags().StringVar(&sniffOut, "out", "session.cbor", "output path for the recorded session")
	sniffCmd.Flags().IntVar(&sniffCap, "capacity", 1024, "bounded recorder capacity (overwrite-on-full)")
	rootCmd.AddCommand(sniffCmd)
}

func runSniff(cmd *cobra.Command, args []string) error {
	port, closer, err := openPort()
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := port.EnableSniffer(sniffCap); err != nil {
		return fmt.Errorf("dmxctl: enable sniffer: %w", err)
	}
	defer port.DisableSniffer()

	fmt.Printf("recording for %s...\n", sniffDuration)
	time.Sleep(sniffDuration)

	rec := port.Sniffer()
	if err := sniffer.ExportSession(rec, port.ID(), sniffOut); err != nil {
		return fmt.Errorf("dmxctl: export session: %w", err)
	}
	fmt.Printf("wrote %s\n", sniffOut)
	return nil
}
