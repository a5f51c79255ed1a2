package feeders

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestPropertiesFeeder_Feed(t *testing.T) {
	path := writeFile(t, "sonar.properties", `
# database
db.url=postgres://localhost/sonar
db.user : sonar
! legacy comment
cluster.hosts=10.0.0.1:9003,\
  10.0.0.2:9003
empty.value=
`)

	got := map[string]string{}
	if err := NewPropertiesFeeder(path).Feed(got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := map[string]string{
		"db.url":        "postgres://localhost/sonar",
		"db.user":       "sonar",
		"cluster.hosts": "10.0.0.1:9003,10.0.0.2:9003",
		"empty.value":   "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestPropertiesFeeder_InvalidLine(t *testing.T) {
	path := writeFile(t, "bad.properties", "valid=1\nnot a property\n")
	err := NewPropertiesFeeder(path).Feed(map[string]string{})
	if !errors.Is(err, ErrPropertiesInvalidLine) {
		t.Fatalf("Expected ErrPropertiesInvalidLine, got %v", err)
	}
}

func TestPropertiesFeeder_MissingFile(t *testing.T) {
	err := NewPropertiesFeeder(filepath.Join(t.TempDir(), "missing.properties")).Feed(map[string]string{})
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestYamlFeeder_Feed(t *testing.T) {
	path := writeFile(t, "ce.yaml", `
path:
  home: /opt/ce
  data: /opt/ce/data
cluster:
  enabled: true
  node:
    port: 9003
  hosts:
    - 10.0.0.1:9003
    - 10.0.0.2:9003
`)

	got := map[string]string{}
	if err := NewYamlFeeder(path).Feed(got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := map[string]string{
		"path.home":         "/opt/ce",
		"path.data":         "/opt/ce/data",
		"cluster.enabled":   "true",
		"cluster.node.port": "9003",
		"cluster.hosts":     "10.0.0.1:9003,10.0.0.2:9003",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestTomlFeeder_Feed(t *testing.T) {
	path := writeFile(t, "ce.toml", `
[ce]
workerCount = 4

[ce.workers]
pollInterval = "500ms"

[db]
url = "postgres://localhost/sonar"
`)

	got := map[string]string{}
	if err := NewTomlFeeder(path).Feed(got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := map[string]string{
		"ce.workerCount":          "4",
		"ce.workers.pollInterval": "500ms",
		"db.url":                  "postgres://localhost/sonar",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestEnvFeeder_Feed(t *testing.T) {
	t.Setenv("CE_DB_URL", "postgres://env/sonar")
	t.Setenv("CE_PROCESS_SHAREDDIR", "/var/ce/shared")
	t.Setenv("OTHER_DB_URL", "ignored")

	got := map[string]string{}
	if err := NewEnvFeeder("ce", "process.sharedDir").Feed(got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got["db.url"] != "postgres://env/sonar" {
		t.Errorf("Expected db.url from env, got %q", got["db.url"])
	}
	if got["process.sharedDir"] != "/var/ce/shared" {
		t.Errorf("Expected catalog key process.sharedDir, got %v", got)
	}
	for k, v := range got {
		if v == "ignored" {
			t.Errorf("Unexpected key %s from another prefix", k)
		}
	}
}

func TestEnvFeeder_EmptyPrefix(t *testing.T) {
	if err := NewEnvFeeder("").Feed(map[string]string{}); !errors.Is(err, ErrEnvEmptyPrefix) {
		t.Fatalf("Expected ErrEnvEmptyPrefix, got %v", err)
	}
}

func TestForFile(t *testing.T) {
	tests := map[string]any{
		"sonar.properties": PropertiesFeeder{},
		"ce.yml":           YamlFeeder{},
		"ce.YAML":          YamlFeeder{},
		"ce.toml":          TomlFeeder{},
	}
	for name, want := range tests {
		f, err := ForFile(name)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if reflect.TypeOf(f) != reflect.TypeOf(want) {
			t.Errorf("%s: expected %T, got %T", name, want, f)
		}
	}
	if _, err := ForFile("ce.json"); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Expected ErrUnsupportedFile, got %v", err)
	}
}

func TestMapFeeder_Feed(t *testing.T) {
	got := map[string]string{"a": "old"}
	if err := (MapFeeder{"a": "new", "b": "2"}).Feed(got); err != nil {
		t.Fatal(err)
	}
	if got["a"] != "new" || got["b"] != "2" {
		t.Errorf("Unexpected result %v", got)
	}
}
