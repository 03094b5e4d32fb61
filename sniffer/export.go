package sniffer

import (
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Session is a recorded capture of pulse widths, serialized with CBOR so
// a captured run can be written to disk and replayed offline, grounded on
// Thermoquad-heliostat's use of fxamacker/cbor/v2 for its own recorded
// telemetry sessions.
type Session struct {
	PortID int     `cbor:"port_id"`
	Widths []Width `cbor:"widths"`
}

// ExportSession drains rec and writes the resulting Session as CBOR to
// path.
func ExportSession(rec *Recorder, portID int, path string) error {
	sess := Session{PortID: portID, Widths: rec.Drain()}
	b, err := cbor.Marshal(sess)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ImportSession reads a Session previously written by ExportSession.
func ImportSession(path string) (Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := cbor.Unmarshal(b, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}
