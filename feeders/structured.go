package feeders

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/spf13/cast"
)

// YamlFeeder reads a YAML file. Nested mappings become dotted keys and
// sequences become comma separated values.
type YamlFeeder struct {
	source feeder.Yaml
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{source: feeder.Yaml{Path: filePath}}
}

// Feed reads the file into dst.
func (y YamlFeeder) Feed(dst map[string]string) error {
	var allData map[string]any
	if err := y.source.Feed(&allData); err != nil {
		return fmt.Errorf("failed to read YAML: %w", err)
	}
	flatten("", allData, dst)
	return nil
}

// TomlFeeder reads a TOML file. Tables become dotted keys and arrays become
// comma separated values.
type TomlFeeder struct {
	source feeder.Toml
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{source: feeder.Toml{Path: filePath}}
}

// Feed reads the file into dst.
func (t TomlFeeder) Feed(dst map[string]string) error {
	var allData map[string]any
	if err := t.source.Feed(&allData); err != nil {
		return fmt.Errorf("failed to read toml: %w", err)
	}
	flatten("", allData, dst)
	return nil
}

// ForFile picks a feeder from the file extension.
func ForFile(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties", ".conf":
		return NewPropertiesFeeder(path), nil
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
}

func flatten(prefix string, value any, dst map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			flatten(join(prefix, k), v[k], dst)
		}
	case map[any]any:
		for k, item := range v {
			flatten(join(prefix, fmt.Sprint(k)), item, dst)
		}
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, cast.ToString(item))
		}
		dst[prefix] = strings.Join(items, ",")
	case nil:
		dst[prefix] = ""
	default:
		dst[prefix] = cast.ToString(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
