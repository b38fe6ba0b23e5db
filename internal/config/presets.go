package config

import (
	"sort"

	"gopkg.in/yaml.v3"
)

func body(name string, radius, period, distance, inertia, albedo float64) *Config {
	c := DefaultConfig()
	c.Name = name
	c.Shape.Radius = radius
	c.Ephemeris.Period = period
	c.Ephemeris.Distance = distance
	c.Params.Inertia = Scalar(inertia)
	c.Params.BondAlbedo = Scalar(albedo)
	return c
}

func didymos() *Config {
	c := body("didymos", 390, 2.26*3600, 1.64, 320, 0.07)
	c.Ephemeris.Rotations = 6
	c.Binary = &BinaryConfig{
		Shape:       ShapeConfig{Scale: 1, Radius: 75, Subdivisions: 2},
		OrbitPeriod: 11.92 * 3600,
		Separation:  1190,
	}
	return c
}

var Presets = map[string]map[string]*Config{
	"single": {
		"sphere":   DefaultConfig(),
		"ryugu":    body("ryugu", 448, 7.63*3600, 1.19, 225, 0.014),
		"bennu":    body("bennu", 245, 4.296*3600, 1.126, 310, 0.016),
		"itokawa":  body("itokawa", 165, 12.13*3600, 1.32, 700, 0.12),
		"regolith": body("regolith", 500, 6*3600, 1, 50, 0.1),
	},
	"binary": {
		"didymos": didymos(),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(kind, preset string) *Config {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	cfg, ok := kindPresets[preset]
	if !ok {
		return nil
	}
	return clone(cfg)
}

// FindPreset looks a preset up by name across all kinds.
func FindPreset(preset string) *Config {
	for _, kind := range Kinds() {
		if cfg := GetPreset(kind, preset); cfg != nil {
			return cfg
		}
	}
	return nil
}

func Kinds() []string {
	kinds := make([]string, 0, len(Presets))
	for k := range Presets {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func ListPresets(kind string) []string {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(kindPresets))
	for name := range kindPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clone(c *Config) *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}
