package feeders

// Feeder writes flat properties into dst. It matches props.Feeder.
type Feeder interface {
	Feed(dst map[string]string) error
}

// MapFeeder feeds fixed values, typically defaults or command line overrides.
type MapFeeder map[string]string

// Feed copies the map into dst.
func (m MapFeeder) Feed(dst map[string]string) error {
	for k, v := range m {
		dst[k] = v
	}
	return nil
}
