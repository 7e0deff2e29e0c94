package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
app:
  name: tapebook
  version: "1.0"
replay:
  tape_path: testdata/tape.csv
  markets:
    - "XEUR:FDAX"
    - "XEUR:FGBL"
analytics:
  bar_interval_sec: 60
  depth_levels: 5
logging:
  level: debug
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.App.Name != "tapebook" {
		t.Errorf("app name = %q", cfg.App.Name)
	}
	if cfg.Replay.TapePath != "testdata/tape.csv" {
		t.Errorf("tape path = %q", cfg.Replay.TapePath)
	}
	if len(cfg.Replay.Markets) != 2 {
		t.Errorf("markets = %v", cfg.Replay.Markets)
	}
	if cfg.Analytics.BarIntervalSec != 60 || cfg.Analytics.DepthLevels != 5 {
		t.Errorf("analytics = %+v", cfg.Analytics)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TAPEBOOK_TAPE", "/tmp/override.csv")
	t.Setenv("TAPEBOOK_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Replay.TapePath != "/tmp/override.csv" {
		t.Errorf("tape path = %q, want env override", cfg.Replay.TapePath)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Logging.Level)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"No Source", "replay:\n  markets: [\"XEUR:FDAX\"]\n"},
		{"No Markets", "replay:\n  tape_path: tape.csv\n"},
		{"Bad Feed URL", "replay:\n  markets: [\"XEUR:FDAX\"]\nfeed:\n  enabled: true\n  ws_url: http://example.com\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, c.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
