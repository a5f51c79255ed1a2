package feeders

import (
	"os"
	"strings"
)

// EnvFeeder reads environment variables starting with Prefix followed by an
// underscore. CE_DB_URL becomes db.url. Keys in Catalog keep their case, so
// CE_PROCESS_SHAREDDIR becomes process.sharedDir when the catalog lists it.
type EnvFeeder struct {
	Prefix  string
	Catalog []string
}

// NewEnvFeeder creates a feeder for the given prefix and known keys.
func NewEnvFeeder(prefix string, catalog ...string) EnvFeeder {
	return EnvFeeder{Prefix: prefix, Catalog: catalog}
}

// Feed copies matching variables into dst.
func (f EnvFeeder) Feed(dst map[string]string) error {
	if f.Prefix == "" {
		return ErrEnvEmptyPrefix
	}
	known := make(map[string]string, len(f.Catalog))
	for _, key := range f.Catalog {
		known[envName(key)] = key
	}

	prefix := strings.ToUpper(f.Prefix) + "_"
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(name, prefix)
		if suffix == "" {
			continue
		}
		key, ok := known[suffix]
		if !ok {
			key = strings.ToLower(strings.ReplaceAll(suffix, "_", "."))
		}
		dst[key] = value
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
