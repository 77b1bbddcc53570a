package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
environment: development
server:
  port: 8080
source:
  type: csv
  data_dir: ./data
  symbols: [SPY]
prediction:
  model: rf
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "development" || c.Server.Port != 8080 {
		t.Fatalf("unexpected config %+v", c)
	}
	if len(c.Source.Symbols) != 1 || c.Source.Symbols[0] != "SPY" {
		t.Fatalf("unexpected symbols %v", c.Source.Symbols)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "QQQ,IWM")
	t.Setenv("DATA_DIR", "/srv/panels")
	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if len(c.Source.Symbols) != 2 || c.Source.Symbols[0] != "QQQ" {
		t.Fatalf("env symbols not applied: %v", c.Source.Symbols)
	}
	if c.Source.DataDir != "/srv/panels" {
		t.Fatalf("env data dir not applied: %s", c.Source.DataDir)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing environment", "source:\n  type: csv\n  data_dir: ./data\n"},
		{"bad source type", "environment: dev\nsource:\n  type: ftp\n"},
		{"csv without data dir", "environment: dev\nsource:\n  type: csv\n"},
		{"clickhouse without host", "environment: dev\nsource:\n  type: clickhouse\n"},
		{"kafka without brokers", validYAML + "kafka:\n  enabled: true\n"},
		{"unknown model", "environment: dev\nsource:\n  type: csv\n  data_dir: d\nprediction:\n  model: xgboost\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
