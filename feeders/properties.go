package feeders

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PropertiesFeeder reads a properties file: one "key=value" or "key: value"
// per line, "#" and "!" comments, and a trailing backslash to continue a value
// on the next line.
type PropertiesFeeder struct {
	Path string
}

// NewPropertiesFeeder creates a feeder reading the given file.
func NewPropertiesFeeder(filePath string) PropertiesFeeder {
	return PropertiesFeeder{Path: filePath}
}

// Feed parses the file into dst.
func (f PropertiesFeeder) Feed(dst map[string]string) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open properties file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	var pending strings.Builder
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if pending.Len() == 0 && (line == "" || line[0] == '#' || line[0] == '!') {
			continue
		}
		if strings.HasSuffix(line, `\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		pending.WriteString(line)
		entry := pending.String()
		pending.Reset()

		idx := strings.IndexAny(entry, "=:")
		if idx <= 0 {
			return wrapPropertiesLineError(f.Path, lineNum, entry)
		}
		dst[strings.TrimSpace(entry[:idx])] = strings.TrimSpace(entry[idx+1:])
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	if pending.Len() > 0 {
		return wrapPropertiesLineError(f.Path, lineNum, pending.String())
	}
	return nil
}
