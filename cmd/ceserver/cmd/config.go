package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/cecontainer/props"
)

// Output formats of the config show command
const (
	FormatProperties = "properties"
	FormatYAML       = "yaml"
	FormatTOML       = "toml"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the compute engine properties",
	}
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var (
		configFiles []string
		envPrefix   string
		format      string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective properties",
		Long: `Print the properties the start command would use, after merging the
files and the environment. The output can be written back as a property file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProps(configFiles, envPrefix)
			if err != nil {
				return err
			}
			return WriteProps(cmd.OutOrStdout(), p, format)
		},
	}
	cmd.Flags().StringArrayVarP(&configFiles, "config", "c", nil, "Property file, may be repeated")
	cmd.Flags().StringVar(&envPrefix, "env-prefix", "CE", "Prefix of the environment variables to read")
	cmd.Flags().StringVarP(&format, "format", "f", FormatProperties, "Output format (properties, yaml, toml)")
	return cmd
}

// WriteProps encodes p to w in the given format.
func WriteProps(w io.Writer, p *props.Props, format string) error {
	switch format {
	case FormatProperties:
		for _, key := range p.Keys() {
			v, _ := p.Value(key)
			if _, err := fmt.Fprintf(w, "%s=%s\n", key, v); err != nil {
				return err
			}
		}
		return nil
	case FormatYAML:
		tree, err := nest(p)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		tree, err := nest(p)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(w).Encode(tree); err != nil {
			return fmt.Errorf("failed to encode TOML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// nest turns the dotted keys into nested tables. A key that is both a value
// and the prefix of another key cannot be represented.
func nest(p *props.Props) (map[string]any, error) {
	root := make(map[string]any)
	for _, key := range p.Keys() {
		v, _ := p.Value(key)
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			switch child := node[part].(type) {
			case nil:
				next := make(map[string]any)
				node[part] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("property %s conflicts with a value at %s", key, part)
			}
		}
		leaf := parts[len(parts)-1]
		if _, exists := node[leaf]; exists {
			return nil, fmt.Errorf("property %s conflicts with a nested property", key)
		}
		node[leaf] = v
	}
	return root, nil
}
