package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/tpmsim/internal/thermo"
)

// Value is a physical property written either as one number or as a list
// with one number per facet.
type Value struct {
	Scalar float64
	List   []float64
	Set    bool
}

func Scalar(v float64) Value { return Value{Scalar: v, Set: true} }

func List(vs ...float64) Value { return Value{List: vs, Set: true} }

func (v Value) IsZero() bool { return !v.Set }

func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*v = Value{}
			return nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return err
		}
		*v = Scalar(f)
	case yaml.SequenceNode:
		var fs []float64
		if err := n.Decode(&fs); err != nil {
			return err
		}
		if len(fs) == 0 {
			return fmt.Errorf("line %d: empty per-facet list", n.Line)
		}
		*v = List(fs...)
	default:
		return fmt.Errorf("line %d: expected a number or a list of numbers", n.Line)
	}
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	switch {
	case !v.Set:
		return nil, nil
	case v.List != nil:
		return v.List, nil
	}
	return v.Scalar, nil
}

// Param converts v; an unset Value gives an unset Param.
func (v Value) Param() thermo.Param {
	switch {
	case !v.Set:
		return thermo.Param{}
	case v.List != nil:
		return thermo.PerFacet(v.List)
	}
	return thermo.Scalar(v.Scalar)
}

func (p ParamsConfig) isZero() bool {
	for _, v := range []Value{p.BondAlbedo, p.IRAlbedo, p.Conductivity, p.Inertia, p.Density, p.HeatCapacity, p.Emissivity} {
		if v.Set {
			return false
		}
	}
	return true
}
