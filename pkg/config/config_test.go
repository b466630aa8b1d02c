package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "quire")
	path := writeConfig(t, "name: ${SAMPLE_NAME}\ndebug: true\n")

	cfg := sample{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "quire" || cfg.Port != 8080 || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "port: -1\n")
	cfg := sample{}
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &sample{}); err == nil {
		t.Error("missing file should fail")
	}
	path := writeConfig(t, "port: [\n")
	if err := Load(path, &sample{Port: 1}); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("malformed err = %v", err)
	}
}

func TestLoadIfExists(t *testing.T) {
	cfg := sample{Port: 1}
	found, err := LoadIfExists(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if found || err != nil || cfg.Port != 1 {
		t.Errorf("missing: found=%v err=%v cfg=%+v", found, err, cfg)
	}

	path := writeConfig(t, "port: 9000\n")
	found, err = LoadIfExists(path, &cfg)
	if !found || err != nil || cfg.Port != 9000 {
		t.Errorf("present: found=%v err=%v cfg=%+v", found, err, cfg)
	}
}
