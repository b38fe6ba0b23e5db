package tpm

import (
	"fmt"
	"sort"
)

// SaveWindow selects the steps whose surface temperature, force and torque
// are retained.
type SaveWindow struct {
	kind  saveKind
	steps []int
	from  int
	to    int
	last  int
}

type saveKind uint8

const (
	saveAll saveKind = iota
	saveSteps
	saveRange
	saveLast
)

// SaveAll keeps every step. It is the zero value.
func SaveAll() SaveWindow { return SaveWindow{kind: saveAll} }

// SaveSteps keeps the listed steps.
func SaveSteps(steps ...int) SaveWindow {
	c := append([]int(nil), steps...)
	return SaveWindow{kind: saveSteps, steps: c}
}

// SaveRange keeps steps from through to−1.
func SaveRange(from, to int) SaveWindow { return SaveWindow{kind: saveRange, from: from, to: to} }

// SaveLast keeps the final n steps, e.g. the last rotation of a spin-up run.
func SaveLast(n int) SaveWindow { return SaveWindow{kind: saveLast, last: n} }

// Resolve returns the sorted, distinct step indices for a run of nt steps.
func (w SaveWindow) Resolve(nt int) ([]int, error) {
	var out []int
	switch w.kind {
	case saveAll:
		out = make([]int, nt)
		for i := range out {
			out[i] = i
		}
	case saveRange:
		if w.from < 0 || w.to > nt || w.from >= w.to {
			return nil, fmt.Errorf("%w: save range [%d, %d) outside %d steps", ErrParameter, w.from, w.to, nt)
		}
		for i := w.from; i < w.to; i++ {
			out = append(out, i)
		}
	case saveLast:
		if w.last < 1 || w.last > nt {
			return nil, fmt.Errorf("%w: cannot keep last %d of %d steps", ErrParameter, w.last, nt)
		}
		for i := nt - w.last; i < nt; i++ {
			out = append(out, i)
		}
	case saveSteps:
		if len(w.steps) == 0 {
			return nil, fmt.Errorf("%w: empty save list", ErrParameter)
		}
		out = append(out, w.steps...)
		sort.Ints(out)
		j := 0
		for i, s := range out {
			if s < 0 || s >= nt {
				return nil, fmt.Errorf("%w: save step %d outside %d steps", ErrParameter, s, nt)
			}
			if i == 0 || s != out[j-1] {
				out[j] = s
				j++
			}
		}
		out = out[:j]
	}
	return out, nil
}

func (w SaveWindow) String() string {
	switch w.kind {
	case saveSteps:
		return fmt.Sprintf("steps%v", w.steps)
	case saveRange:
		return fmt.Sprintf("range[%d,%d)", w.from, w.to)
	case saveLast:
		return fmt.Sprintf("last(%d)", w.last)
	}
	return "all"
}

// slots maps step → output column, −1 when the step is not saved.
func slots(steps []int, nt int) []int {
	s := make([]int, nt)
	for i := range s {
		s[i] = -1
	}
	for j, n := range steps {
		s[n] = j
	}
	return s
}
