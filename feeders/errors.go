// Package feeders provides configuration sources for the compute engine
// properties: Java-style properties files, YAML, TOML, environment variables
// and in-memory maps. Every feeder writes flat dotted keys.
package feeders

import (
	"errors"
	"fmt"
)

// Static error definitions for feeders
var (
	ErrPropertiesInvalidLine = errors.New("invalid properties line")
	ErrEnvEmptyPrefix        = errors.New("env: prefix cannot be empty")
	ErrUnsupportedFile       = errors.New("unsupported configuration file")
)

func wrapPropertiesLineError(path string, line int, text string) error {
	return fmt.Errorf("%w at %s:%d: %s", ErrPropertiesInvalidLine, path, line, text)
}
