package storage

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/tpmsim/internal/thermo"
	"github.com/san-kum/tpmsim/internal/tpm"
)

// BodyState is the full temperature field of one body as stored on disk.
type BodyState struct {
	Name       string
	Nz, Ns, Nt int
	Data       []float64
}

// Temperature wraps the stored field without copying.
func (b BodyState) Temperature() (*thermo.Temperature, error) {
	return thermo.NewTemperatureFrom(b.Data, b.Nz, b.Ns, b.Nt)
}

// SaveState writes the temperature fields of bodies as a zstd-compressed gob
// stream.
func SaveState(path string, bodies []*tpm.Body) error {
	states := make([]BodyState, len(bodies))
	for i, b := range bodies {
		nz, ns, nt := b.Temp.Shape()
		states[i] = BodyState{Name: b.Name, Nz: nz, Ns: ns, Nt: nt, Data: b.Temp.Data()}
	}

	return writeFile(path, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(enc).Encode(states); err != nil {
			enc.Close()
			return fmt.Errorf("storage: encode state: %w", err)
		}
		return enc.Close()
	})
}

func LoadState(path string) ([]BodyState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var states []BodyState
	if err := gob.NewDecoder(dec).Decode(&states); err != nil {
		return nil, fmt.Errorf("storage: decode state: %w", err)
	}
	for _, s := range states {
		if len(s.Data) != s.Nz*s.Ns*s.Nt {
			return nil, fmt.Errorf("storage: state of %s: %w", s.Name, thermo.ErrShapeMismatch)
		}
	}
	return states, nil
}
