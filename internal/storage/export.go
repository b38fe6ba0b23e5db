package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

type ExportBody struct {
	Name    string      `json:"name"`
	Steps   []int       `json:"steps"`
	Times   []float64   `json:"times"`
	Surface [][]float64 `json:"surface_temperature"`
	Forces  []ForceRow  `json:"forces"`
}

type ExportData struct {
	Run    RunMetadata  `json:"run"`
	Bodies []ExportBody `json:"bodies"`
}

// ExportJSON writes the metadata and every saved series of a run to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta}
	for _, b := range meta.Bodies {
		surf, err := s.LoadSurface(runID, b.Name)
		if err != nil {
			return err
		}
		forces, err := s.LoadForces(runID, b.Name)
		if err != nil {
			return err
		}
		data.Bodies = append(data.Bodies, ExportBody{
			Name:    b.Name,
			Steps:   surf.Steps,
			Times:   surf.Times,
			Surface: surf.Temps,
			Forces:  forces,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes the temperature history of the given facets of one body as
// time,T_<facet>... rows.
func (s *Store) ExportCSV(w io.Writer, runID, body string, facets []int) error {
	surf, err := s.LoadSurface(runID, body)
	if err != nil {
		return err
	}
	if len(surf.Temps) == 0 {
		return fmt.Errorf("storage: run %s has no saved steps for %s", runID, body)
	}
	ns := len(surf.Temps[0])
	if len(facets) == 0 {
		facets = make([]int, ns)
		for i := range facets {
			facets[i] = i
		}
	}
	header := []string{"time"}
	for _, f := range facets {
		if f < 0 || f >= ns {
			return fmt.Errorf("storage: facet %d out of range [0, %d)", f, ns)
		}
		header = append(header, "T_"+strconv.Itoa(f))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for j, row := range surf.Temps {
		rec := []string{formatFloat(surf.Times[j])}
		for _, f := range facets {
			rec = append(rec, formatFloat(row[f]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
