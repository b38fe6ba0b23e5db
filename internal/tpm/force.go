package tpm

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/energy"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
)

// Recoil sums the Lambertian photon recoil of every facet in the body frame:
// dF = −(2/3)·(E_emit + E_refl)/c·A·n̂ and τ = r × dF with r the facet
// centroid.
func Recoil(sh *shape.Shape, tab *thermo.Table, recs []flux.Record, surface []float64) (force, torque r3.Vec) {
	const k = -2.0 / 3.0 / thermo.SpeedOfLight
	for i := range sh.Facets() {
		f := sh.Facet(i)
		e := energy.Emitted(surface[i], tab.Emissivity[i]) +
			recs[i].Reflected(tab.BondAlbedo[i], tab.IRAlbedo[i])
		if e == 0 {
			continue
		}
		df := r3.Scale(k*e*f.Area, f.Normal)
		force = r3.Add(force, df)
		torque = r3.Add(torque, r3.Cross(f.Centroid, df))
	}
	return force, torque
}
