package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/openlx/dmxrdm"
	"github.com/openlx/dmxrdm/dmx/nvs/memnvs"
)

var (
	device       string
	stateFile    string
	manufacturer uint16
	footprint    int
)

var rootCmd = &cobra.Command{
	Use:   "dmxctl",
	Short: "DMX512/RDM diagnostic CLI",
	Long: `dmxctl drives a dmxrdm port for manual protocol testing.

Connection modes:
  In-memory: default, no --device given; loops back nothing, useful for
             smoke-testing encode/decode without hardware.
  Real bus:  --device /dev/ttyUSB0`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&device, "device", "", "RS-485-over-USB serial device (e.g. /dev/ttyUSB0); omit for an in-memory mock port")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "flat-file NVS backing for persisted RDM parameters")
	rootCmd.PersistentFlags().Uint16Var(&manufacturer, "manufacturer", 0x7FF0, "16-bit ESTA manufacturer ID for this controller/responder's UID")
	rootCmd.PersistentFlags().IntVar(&footprint, "footprint", 1, "DMX footprint (slots) of the port's default personality")
}

// openPort opens and installs a port per the persistent flags, returning
// it plus a closer that tears the port down (and the underlying serial
// connection, if any).
func openPort() (*dmxrdm.Port, io.Closer, error) {
	var port *dmxrdm.Port
	var closer io.Closer = nopCloser{}

	if device != "" {
		p, hw, err := NewSerialPort(device)
		if err != nil {
			return nil, nil, err
		}
		port, closer = p, hw
	} else {
		port = NewMockPort()
	}

	var nvs dmxrdm.NVS
	if stateFile != "" {
		store, err := memnvs.Open(stateFile)
		if err != nil {
			return nil, nil, err
		}
		nvs = store
	}

	cfg := dmxrdm.Config{
		ModelID:              0x0001,
		ProductCategory:      0x0101, // DIMMER/generic, placeholder diagnostic category
		SoftwareVersionID:    1,
		SoftwareVersionLabel: "dmxctl",
		ManufacturerLabel:    "dmxctl",
		DeviceLabel:          "dmxctl",
		Personalities:        []dmxrdm.Personality{{Footprint: footprint, Description: "dmxctl default"}},
		DefaultPersonality:   1,
		NVS:                  nvs,
	}
	if err := dmxrdm.Install(port, manufacturer, cfg); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return port, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewMockPort and NewSerialPort thinly wrap the root package's
// constructors so this file doesn't need to know which backend was
// chosen beyond the flag check above.
func NewMockPort() *dmxrdm.Port {
	p, _ := dmxrdm.NewMockPort()
	return p
}

func NewSerialPort(name string) (*dmxrdm.Port, io.Closer, error) {
	return dmxrdm.NewSerialPort(name)
}
