package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/tpmsim/internal/config"
	"github.com/san-kum/tpmsim/internal/shape"
)

// ShapeFunc builds a body shape from its config section.
type ShapeFunc func(sc config.ShapeConfig) (*shape.Shape, error)

type Registry struct {
	shapes map[string]ShapeFunc
}

func NewRegistry() *Registry {
	r := &Registry{shapes: make(map[string]ShapeFunc)}

	r.shapes["icosphere"] = func(sc config.ShapeConfig) (*shape.Shape, error) {
		if !(sc.Radius > 0) || sc.Subdivisions < 0 || sc.Subdivisions > 6 {
			return nil, fmt.Errorf("%w: icosphere radius %g, subdivisions %d", shape.ErrShape, sc.Radius, sc.Subdivisions)
		}
		return shape.Icosphere(sc.Radius, sc.Subdivisions), nil
	}
	r.shapes["obj"] = func(sc config.ShapeConfig) (*shape.Shape, error) {
		scale := sc.Scale
		if scale == 0 {
			scale = 1
		}
		return shape.LoadOBJ(sc.Path, scale)
	}
	return r
}

// Register adds or replaces a shape source.
func (r *Registry) Register(kind string, fn ShapeFunc) { r.shapes[kind] = fn }

// Shape builds the shape described by sc. A path selects the OBJ loader.
func (r *Registry) Shape(sc config.ShapeConfig) (*shape.Shape, error) {
	kind := "icosphere"
	if sc.Path != "" {
		kind = "obj"
	}
	fn, ok := r.shapes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown shape source: %s", kind)
	}
	return fn(sc)
}

func (r *Registry) ListShapes() []string {
	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
