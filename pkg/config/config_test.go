package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_NAME", "xmledit")
	cfg := &testConfig{}
	if err := Load(writeFile(t, "name: ${TEST_CONFIG_NAME}\nport: 9090\n"), cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "xmledit" || cfg.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &testConfig{}); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeFile(t, "port: [\n"), &testConfig{}); err == nil {
		t.Error("bad yaml should fail")
	}
	if err := Load(writeFile(t, "port: 0\n"), &testConfig{}); err == nil {
		t.Error("validation error should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := &testConfig{Name: "default", Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), cfg)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if cfg.Name != "default" || cfg.Port != 8080 {
		t.Errorf("defaults changed: %+v", cfg)
	}

	found, err = LoadOptional(writeFile(t, "port: 7000\n"), cfg)
	if err != nil || !found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if cfg.Name != "default" || cfg.Port != 7000 {
		t.Errorf("file values should overlay defaults: %+v", cfg)
	}

	if _, err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &testConfig{}); err == nil {
		t.Error("invalid defaults should fail validation")
	}
}
