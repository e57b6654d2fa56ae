package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand_UsesLdflags(t *testing.T) {
	oldVersion, oldCommit, oldDate := version, commit, date
	t.Cleanup(func() { version, commit, date = oldVersion, oldCommit, oldDate })
	version, commit, date = "v1.2.3", "deadbeef", "2026-01-01T00:00:00Z"

	code, out, stderr := runCLI(t, "", "version")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr=%q)", code, stderr)
	}
	for _, want := range []string{"v1.2.3", "deadbeef", "2026-01-01T00:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	code, out, _ = runCLI(t, "", "version", "--json")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if info["version"] != "v1.2.3" {
		t.Fatalf("unexpected version field: %v", info)
	}
}

func TestUsageErrorsExitTwo(t *testing.T) {
	cases := [][]string{
		{"serve", "--no-such-flag"},
		{"serve", "extra-arg"},
		{"--log-level", "loud", "version"},
		{"config", "check"},
		{"connect", "http://not-websocket"},
	}
	for _, args := range cases {
		code, _, stderr := runCLI(t, "", args...)
		if code != 2 {
			t.Fatalf("%v: expected exit 2, got %d (stderr=%q)", args, code, stderr)
		}
	}
}

func TestConfigInitAndCheck(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sscp.toml")
	if code, _, stderr := runCLI(t, "", "config", "init", "--out", p); code != 0 {
		t.Fatalf("init failed: %d %s", code, stderr)
	}
	if code, _, _ := runCLI(t, "", "config", "init", "--out", p); code != 2 {
		t.Fatalf("second init must refuse to overwrite, got %d", code)
	}
	if code, _, stderr := runCLI(t, "", "config", "init", "--out", p, "--overwrite"); code != 0 {
		t.Fatalf("overwrite failed: %d %s", code, stderr)
	}

	code, out, stderr := runCLI(t, "", "config", "check", p)
	if code != 0 {
		t.Fatalf("check failed: %d %s", code, stderr)
	}
	if !strings.Contains(out, `"ok":true`) || !strings.Contains(out, `"/SSCP/"`) {
		t.Fatalf("unexpected check output %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("keepalive_interval = \"30s\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI(t, "", "config", "check", bad); code != 2 {
		t.Fatalf("interval above skew must fail validation, got %d", code)
	}
}

func TestConfigInitStdout(t *testing.T) {
	code, out, _ := runCLI(t, "", "config", "init", "--out", "-")
	if code != 0 || !strings.Contains(out, "max_timestamp_skew = \"10s\"") {
		t.Fatalf("unexpected output (%d): %q", code, out)
	}
}
