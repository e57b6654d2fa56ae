package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/rs/zerolog"
)

func envOf(vals map[string]string) cmdutil.Env {
	return cmdutil.Env{Prefix: "SSCP_", Lookup: func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", raw, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("unknown level must not parse")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := ApplyEnv(DefaultConfig(), envOf(map[string]string{
		"SSCP_LOG_LEVEL":     "debug",
		"SSCP_LOG_FORMAT":    "json",
		"SSCP_LOG_NOCOLOR":   "true",
		"SSCP_LOG_TIMESTAMP": "nope",
	}))
	if cfg.Level != zerolog.DebugLevel || cfg.Format != FormatJSON || !cfg.NoColor {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Fatalf("invalid value must keep the default")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Timestamp = false
	log := New(&buf, "sscp", cfg)
	log.Debug().Msg("hidden")
	log.Info().Str("ip", "127.0.0.1").Msg("accepted")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["app"] != "sscp" || rec["ip"] != "127.0.0.1" || rec["message"] != "accepted" {
		t.Fatalf("unexpected record %v", rec)
	}
	if _, ok := rec["time"]; ok {
		t.Fatalf("timestamp must be omitted")
	}
}

func TestNewConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.NoColor = true
	log := New(&buf, "sscp", cfg)
	log.Warn().Msg("keep-alive timeout")
	out := buf.String()
	if !strings.Contains(out, "keep-alive timeout") || strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected console output %q", out)
	}
}
