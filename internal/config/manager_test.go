package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  path: ./data/vidforge.db
genai:
  api_key: test-key
  idea_batch_size: 3
automation:
  enabled: true
  interval: 5m
  due_window: 6m
  default_timezone: Asia/Jakarta
http:
  enabled: true
  addr: 127.0.0.1:9090
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.GenAI.IdeaBatchSize != 3 {
		t.Errorf("idea_batch_size = %d", cfg.GenAI.IdeaBatchSize)
	}
	if !cfg.Automation.Enabled || cfg.Automation.Interval != "5m" {
		t.Errorf("automation = %+v", cfg.Automation)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9090" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},
		  "storage":{"path":"./x.db"},
		  "genai":{"api_key":"k"},
		  "automation":{"enabled":false}}`))

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Path != "./x.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML+"\nsurprise: true\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown-field rejection")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{"automation":{"enabled":true}} {"more":1}`))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("expected trailing-data error, got %v", err)
	}
}

func TestLoadCommitsSnapshot(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if m.Get() != cfg {
		t.Error("Get should return the committed snapshot")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"5m", 5 * time.Minute, false},
		{"90s", 90 * time.Second, false},
		{"", 0, false},
		{"  ", 0, false},
		{"-5m", 0, true},
		{"5 minutes", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("test.field", tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseDurationField(%q) err = %v, wantErr %v", tc.raw, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || d != time.Minute {
		t.Errorf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("f", "30s", time.Minute); err != nil || d != 30*time.Second {
		t.Errorf("explicit = %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("f", "bogus", time.Minute); err == nil {
		t.Error("expected error for invalid duration")
	}
}
