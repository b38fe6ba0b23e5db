package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/san-kum/tpmsim/internal/config"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/tpm"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	ephemFile    = "ephemeris.csv"
	binaryFile   = "binary.csv"
	eclipsedFile = "eclipsed.csv"
	surfaceFile  = "surface_temperature.csv"
	forcesFile   = "forces.csv"
	stateFile    = "state.gob.zst"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string { return filepath.Join(s.baseDir, runID) }

type RunMetadata struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	Epoch      time.Time      `json:"epoch"`
	EpochJD    float64        `json:"epoch_jd"`
	Period     float64        `json:"period"`
	Steps      int            `json:"steps"`
	SavedSteps int            `json:"saved_steps"`
	Nodes      int            `json:"nodes"`
	Upper      string         `json:"upper_boundary"`
	Lower      string         `json:"lower_boundary"`
	Bodies     []BodyMetadata `json:"bodies"`
	HasState   bool           `json:"has_state"`
	Elapsed    float64        `json:"elapsed_seconds"`
}

type BodyMetadata struct {
	Name          string     `json:"name"`
	Facets        int        `json:"facets"`
	NonConverged  int        `json:"non_converged"`
	MaxIterations int        `json:"max_iterations"`
	EnergyRatio   *float64   `json:"energy_ratio"`
	Eclipsed      int        `json:"eclipsed_facet_steps"`
	MeanForce     [3]float64 `json:"mean_force"`
	MeanTorque    [3]float64 `json:"mean_torque"`
}

// Run is everything persisted for one simulation.
type Run struct {
	Config    *config.Config
	Ephemeris *ephem.Ephemeris
	Binary    *ephem.Binary // coupling geometry of binary runs
	Results   []*tpm.Result
	Bodies    []*tpm.Body // written to the state dump when non-nil
	Elapsed   time.Duration
}

// Save writes run under a new run directory and returns its ID. A failed
// save removes the directory.
func (s *Store) Save(run Run) (string, error) {
	if len(run.Results) == 0 {
		return "", fmt.Errorf("storage: nothing to save")
	}
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", run.Config.Name, now.UnixMilli())
	runDir := s.Dir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := s.write(runDir, runID, now, run); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("storage: save %s: %w", runID, err)
	}
	return runID, nil
}

func (s *Store) write(runDir, runID string, now time.Time, run Run) error {
	epoch, _ := run.Config.Epoch()
	if run.Ephemeris != nil && !run.Ephemeris.Epoch.IsZero() {
		epoch = run.Ephemeris.Epoch
	}
	first := run.Results[0]
	meta := RunMetadata{
		ID:         runID,
		Name:       run.Config.Name,
		Kind:       "single",
		Timestamp:  now,
		Epoch:      epoch,
		EpochJD:    julian.TimeToJD(epoch),
		Period:     run.Config.Ephemeris.Period,
		Steps:      first.Diagnostics.Steps,
		SavedSteps: len(first.Steps),
		Nodes:      run.Config.Depth.Nodes,
		Upper:      run.Config.Boundary.Upper,
		Lower:      run.Config.Boundary.Lower,
		HasState:   run.Bodies != nil,
		Elapsed:    run.Elapsed.Seconds(),
	}
	if len(run.Results) > 1 || run.Binary != nil {
		meta.Kind = "binary"
	}

	for _, res := range run.Results {
		meta.Bodies = append(meta.Bodies, bodyMetadata(res))
		bodyDir := filepath.Join(runDir, res.Body)
		if err := os.MkdirAll(bodyDir, 0755); err != nil {
			return err
		}
		if err := writeSurface(filepath.Join(bodyDir, surfaceFile), res); err != nil {
			return err
		}
		if err := writeForces(filepath.Join(bodyDir, forcesFile), res); err != nil {
			return err
		}
		if res.Eclipsed != nil {
			if err := writeEclipsed(filepath.Join(bodyDir, eclipsedFile), res); err != nil {
				return err
			}
		}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(runDir, configFile), run.Config); err != nil {
		return err
	}
	if run.Ephemeris != nil {
		sub := run.Ephemeris.Subset(first.Steps)
		err := writeFile(filepath.Join(runDir, ephemFile), func(w io.Writer) error {
			return ephem.WriteCSV(w, sub)
		})
		if err != nil {
			return err
		}
	}
	if run.Binary != nil {
		sub := run.Binary.Subset(first.Steps)
		err := writeFile(filepath.Join(runDir, binaryFile), func(w io.Writer) error {
			return ephem.WriteBinaryCSV(w, sub)
		})
		if err != nil {
			return err
		}
	}
	if run.Bodies != nil {
		if err := SaveState(filepath.Join(runDir, stateFile), run.Bodies); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates path, fills it with fn and reports the close error.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func bodyMetadata(res *tpm.Result) BodyMetadata {
	d := res.Diagnostics
	bm := BodyMetadata{
		Name:          res.Body,
		NonConverged:  d.NonConverged,
		MaxIterations: d.MaxIterations,
		Eclipsed:      d.Eclipsed,
	}
	bm.Facets, _ = res.Surface.Dims()
	if !math.IsNaN(d.EnergyRatio) {
		r := d.EnergyRatio
		bm.EnergyRatio = &r
	}
	f, t := res.MeanForce(), res.MeanTorque()
	bm.MeanForce = [3]float64{f.X, f.Y, f.Z}
	bm.MeanTorque = [3]float64{t.X, t.Y, t.Z}
	return bm
}

func writeJSON(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }

// writeSurface writes one row per saved step: step, time, then one column
// per facet.
func writeSurface(path string, res *tpm.Result) error {
	return writeFile(path, func(out io.Writer) error { return surfaceCSV(out, res) })
}

func surfaceCSV(out io.Writer, res *tpm.Result) error {
	w := csv.NewWriter(out)

	ns, _ := res.Surface.Dims()
	header := []string{"step", "time"}
	for i := 0; i < ns; i++ {
		header = append(header, fmt.Sprintf("f%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, ns+2)
	for j, n := range res.Steps {
		row[0] = strconv.Itoa(n)
		row[1] = formatFloat(res.Times[j])
		for i := 0; i < ns; i++ {
			row[i+2] = formatFloat(res.Surface.At(i, j))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeForces(path string, res *tpm.Result) error {
	return writeFile(path, func(out io.Writer) error { return forcesCSV(out, res) })
}

func forcesCSV(out io.Writer, res *tpm.Result) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"step", "time", "fx", "fy", "fz", "tx", "ty", "tz"}); err != nil {
		return err
	}
	for j, n := range res.Steps {
		fv, tv := res.Force[j], res.Torque[j]
		row := []string{strconv.Itoa(n), formatFloat(res.Times[j]),
			formatFloat(fv.X), formatFloat(fv.Y), formatFloat(fv.Z),
			formatFloat(tv.X), formatFloat(tv.Y), formatFloat(tv.Z)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeEclipsed writes one row per saved step with a 0/1 flag per facet.
func writeEclipsed(path string, res *tpm.Result) error {
	return writeFile(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		ns, _ := res.Surface.Dims()
		header := []string{"step", "time"}
		for i := 0; i < ns; i++ {
			header = append(header, fmt.Sprintf("f%d", i))
		}
		if err := w.Write(header); err != nil {
			return err
		}
		row := make([]string, ns+2)
		for j, n := range res.Steps {
			row[0] = strconv.Itoa(n)
			row[1] = formatFloat(res.Times[j])
			for i := 0; i < ns; i++ {
				row[i+2] = "0"
				if j < len(res.Eclipsed) && i < len(res.Eclipsed[j]) && res.Eclipsed[j][i] {
					row[i+2] = "1"
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

// List returns every run in the store, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig reads the config a run was started with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.Dir(runID), configFile))
}

func (s *Store) LoadEphemeris(runID string) (*ephem.Ephemeris, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	return ephem.LoadCSV(filepath.Join(s.Dir(runID), ephemFile), meta.Epoch)
}

// LoadBinary reads the coupling geometry of a binary run at its saved steps.
func (s *Store) LoadBinary(runID string) (*ephem.Binary, error) {
	primary, err := s.LoadEphemeris(runID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir(runID), binaryFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ephem.ReadBinaryCSV(f, primary)
}

// LoadEclipsed reads the per-facet eclipse flags of one body of a binary run.
func (s *Store) LoadEclipsed(runID, body string) ([][]bool, error) {
	records, err := readTable(filepath.Join(s.Dir(runID), body, eclipsedFile))
	if err != nil {
		return nil, err
	}
	out := make([][]bool, len(records))
	for j, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("storage: %s eclipsed: malformed row %v", runID, rec)
		}
		flags := make([]bool, len(rec)-2)
		for i, v := range rec[2:] {
			flags[i] = v == "1"
		}
		out[j] = flags
	}
	return out, nil
}

// Surface is the saved surface temperature history of one body.
type Surface struct {
	Steps []int
	Times []float64
	Temps [][]float64 // [saved step][facet]
}

// Facet returns the temperature series of facet i.
func (s *Surface) Facet(i int) []float64 {
	out := make([]float64, len(s.Temps))
	for j, row := range s.Temps {
		out[j] = row[i]
	}
	return out
}

func readTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: %s is empty", path)
	}
	return records[1:], nil
}

func parseRow(rec []string) (int, []float64, error) {
	n, err := strconv.Atoi(rec[0])
	if err != nil {
		return 0, nil, err
	}
	vs := make([]float64, len(rec)-1)
	for i, s := range rec[1:] {
		if vs[i], err = strconv.ParseFloat(s, 64); err != nil {
			return 0, nil, err
		}
	}
	return n, vs, nil
}

func (s *Store) LoadSurface(runID, body string) (*Surface, error) {
	records, err := readTable(filepath.Join(s.Dir(runID), body, surfaceFile))
	if err != nil {
		return nil, err
	}
	out := &Surface{}
	for _, rec := range records {
		n, vs, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("storage: %s surface: %w", runID, err)
		}
		out.Steps = append(out.Steps, n)
		out.Times = append(out.Times, vs[0])
		out.Temps = append(out.Temps, vs[1:])
	}
	return out, nil
}

type ForceRow struct {
	Step   int        `json:"step"`
	Time   float64    `json:"time"`
	Force  [3]float64 `json:"force"`
	Torque [3]float64 `json:"torque"`
}

func (s *Store) LoadForces(runID, body string) ([]ForceRow, error) {
	records, err := readTable(filepath.Join(s.Dir(runID), body, forcesFile))
	if err != nil {
		return nil, err
	}
	out := make([]ForceRow, 0, len(records))
	for _, rec := range records {
		n, vs, err := parseRow(rec)
		if err != nil || len(vs) != 7 {
			return nil, fmt.Errorf("storage: %s forces: malformed row %v", runID, rec)
		}
		out = append(out, ForceRow{
			Step:   n,
			Time:   vs[0],
			Force:  [3]float64{vs[1], vs[2], vs[3]},
			Torque: [3]float64{vs[4], vs[5], vs[6]},
		})
	}
	return out, nil
}

// LoadRunState reads the full-state dump of a run.
func (s *Store) LoadRunState(runID string) ([]BodyState, error) {
	return LoadState(filepath.Join(s.Dir(runID), stateFile))
}
