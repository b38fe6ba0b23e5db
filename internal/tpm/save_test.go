package tpm

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
)

func TestSaveWindowResolve(t *testing.T) {
	tests := []struct {
		name string
		w    SaveWindow
		want []int
	}{
		{"all", SaveAll(), []int{0, 1, 2, 3, 4}},
		{"zero value", SaveWindow{}, []int{0, 1, 2, 3, 4}},
		{"range", SaveRange(1, 3), []int{1, 2}},
		{"last", SaveLast(2), []int{3, 4}},
		{"steps", SaveSteps(4, 0, 4, 2), []int{0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.w.Resolve(5)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSaveWindowRejects(t *testing.T) {
	for _, w := range []SaveWindow{SaveRange(3, 9), SaveRange(2, 2), SaveLast(0), SaveLast(6), SaveSteps(), SaveSteps(1, 5)} {
		if _, err := w.Resolve(5); !errors.Is(err, ErrParameter) {
			t.Errorf("%s: expected ErrParameter, got %v", w, err)
		}
	}
}

func TestSlots(t *testing.T) {
	got := slots([]int{1, 3}, 4)
	if !reflect.DeepEqual(got, []int{-1, 0, -1, 1}) {
		t.Errorf("unexpected slots %v", got)
	}
}

func TestRecoil(t *testing.T) {
	sh, err := shape.New([]r3.Vec{{X: 1, Z: 2}, {X: 3, Z: 2}, {X: 1, Y: 2, Z: 2}}, [][3]int{{0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	tab, err := thermo.Params{
		BondAlbedo:   thermo.Scalar(0.1),
		IRAlbedo:     thermo.Scalar(0),
		Conductivity: thermo.Scalar(0.01),
		Density:      thermo.Scalar(2000),
		HeatCapacity: thermo.Scalar(700),
		Emissivity:   thermo.Scalar(0.9),
		Period:       3600,
	}.Resolve(1)
	if err != nil {
		t.Fatal(err)
	}

	recs := []flux.Record{{Sun: 1000}}
	force, torque := Recoil(sh, tab, recs, []float64{300})

	e := 0.9*thermo.StefanBoltzmann*math.Pow(300, 4) + 0.1*1000
	want := -2.0 / 3.0 * e / thermo.SpeedOfLight * 2
	if math.Abs(force.Z-want) > 1e-20 || force.X != 0 || force.Y != 0 {
		t.Errorf("expected force (0, 0, %g), got %+v", want, force)
	}

	// τ = r × F with r the centroid (5/3, 2/3, 2).
	c := sh.Facet(0).Centroid
	wantTorque := r3.Cross(c, force)
	if r3.Norm(r3.Sub(torque, wantTorque)) > 1e-20 {
		t.Errorf("expected torque %+v, got %+v", wantTorque, torque)
	}
	if torque.Z != 0 {
		t.Errorf("force along z cannot produce z torque, got %g", torque.Z)
	}

	force, torque = Recoil(sh, tab, []flux.Record{{}}, []float64{0})
	if force != (r3.Vec{}) || torque != (r3.Vec{}) {
		t.Errorf("expected no recoil from a cold dark facet, got %+v %+v", force, torque)
	}
}

func TestStepErrorUnwraps(t *testing.T) {
	err := error(&StepError{Body: "a", Step: 3, Time: 10, Err: ErrUnstable})
	if !errors.Is(err, thermo.ErrUnstable) {
		t.Error("StepError should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("empty message")
	}
}
