package ephem

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var csvHeader = []string{"time_s", "sun_x", "sun_y", "sun_z"}

// ReadCSV reads rows of time (s) and sun position (m). A header row and
// lines starting with '#' are skipped.
func ReadCSV(r io.Reader, epoch time.Time) (*Ephemeris, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	e := &Ephemeris{Epoch: epoch}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEphemeris, err)
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrEphemeris, row, len(rec))
		}
		var v [4]float64
		header := false
		for i := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				if row == 1 {
					header = true
					break
				}
				return nil, fmt.Errorf("%w: row %d: %v", ErrEphemeris, row, err)
			}
			v[i] = f
		}
		if header {
			continue
		}
		e.Times = append(e.Times, v[0])
		e.Sun = append(e.Sun, r3.Vec{X: v[1], Y: v[2], Z: v[3]})
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func LoadCSV(path string, epoch time.Time) (*Ephemeris, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	e, err := ReadCSV(f, epoch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// WriteCSV writes e in the format read by ReadCSV.
func WriteCSV(w io.Writer, e *Ephemeris) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, t := range e.Times {
		s := e.Sun[i]
		rec := []string{
			strconv.FormatFloat(t, 'g', -1, 64),
			strconv.FormatFloat(s.X, 'g', -1, 64),
			strconv.FormatFloat(s.Y, 'g', -1, 64),
			strconv.FormatFloat(s.Z, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var binaryHeader = []string{"time_s",
	"sun2_x", "sun2_y", "sun2_z",
	"offset_x", "offset_y", "offset_z",
	"r00", "r01", "r02", "r10", "r11", "r12", "r20", "r21", "r22"}

// WriteBinaryCSV writes the coupling geometry of b, one row per sample:
// time, the sun seen from the secondary, the secondary's offset and the
// row-major secondary-to-primary rotation.
func WriteBinaryCSV(w io.Writer, b *Binary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(binaryHeader); err != nil {
		return err
	}
	rec := make([]string, len(binaryHeader))
	put := func(i int, v float64) { rec[i] = strconv.FormatFloat(v, 'g', -1, 64) }
	for i, t := range b.Primary.Times {
		put(0, t)
		s, o := b.SunSecondary[i], b.Offset[i]
		put(1, s.X)
		put(2, s.Y)
		put(3, s.Z)
		put(4, o.X)
		put(5, o.Y)
		put(6, o.Z)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				put(7+3*r+c, b.Rotation[i].At(r, c))
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBinaryCSV reads the format written by WriteBinaryCSV and attaches it to
// the primary ephemeris, whose sample times must match.
func ReadBinaryCSV(r io.Reader, primary *Ephemeris) (*Binary, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = len(binaryHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEphemeris, err)
	}
	if len(records) > 0 && records[0][0] == binaryHeader[0] {
		records = records[1:]
	}
	b := &Binary{Primary: primary}
	for row, rec := range records {
		var v [16]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err != nil {
				return nil, fmt.Errorf("%w: binary row %d: %v", ErrEphemeris, row+1, err)
			}
		}
		if row < primary.Len() && v[0] != primary.Times[row] {
			return nil, fmt.Errorf("%w: binary row %d at t=%g, primary at t=%g",
				ErrEphemeris, row+1, v[0], primary.Times[row])
		}
		b.SunSecondary = append(b.SunSecondary, r3.Vec{X: v[1], Y: v[2], Z: v[3]})
		b.Offset = append(b.Offset, r3.Vec{X: v[4], Y: v[5], Z: v[6]})
		b.Rotation = append(b.Rotation, mat.NewDense(3, 3, append([]float64(nil), v[7:]...)))
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
