package tool

import "context"

// StaticSource serves a fixed table of native units.
type StaticSource struct {
	name  string
	units []Descriptor
}

// NewStaticSource returns a source over descriptors in the given order.
// Descriptors without an origin are marked native.
func NewStaticSource(name string, descriptors ...Descriptor) *StaticSource {
	units := make([]Descriptor, 0, len(descriptors))
	for _, desc := range descriptors {
		if desc.Origin == "" {
			desc.Origin = OriginNative
		}
		units = append(units, desc.clone())
	}
	return &StaticSource{name: name, units: units}
}

// Name implements Source.
func (s *StaticSource) Name() string {
	if s.name == "" {
		return "static"
	}
	return s.name
}

// Units implements Source.
func (s *StaticSource) Units(ctx context.Context) ([]Unit, error) {
	out := make([]Unit, 0, len(s.units))
	for _, desc := range s.units {
		out = append(out, Unit{Ref: desc.Name, Descriptor: desc.clone()})
	}
	return out, nil
}
