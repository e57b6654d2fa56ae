package cmdutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteNewFile_CreatesMissing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sscp.toml")
	if err := WriteNewFile(p, []byte("x"), false); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	st, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && st.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", st.Mode().Perm())
	}
}

func TestWriteNewFile_RefusesExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sscp.toml")
	if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := WriteNewFile(p, []byte("new"), false)
	if !IsUsage(err) {
		t.Fatalf("expected UsageError, got %T: %v", err, err)
	}
	if err := WriteNewFile(p, []byte("new"), true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "new" {
		t.Fatalf("unexpected content %q", b)
	}
	if runtime.GOOS != "windows" {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		if st.Mode().Perm() != 0o600 {
			t.Fatalf("overwrite must tighten the mode, got %v", st.Mode().Perm())
		}
	}
	left, _ := filepath.Glob(filepath.Join(filepath.Dir(p), ".sscp.toml.tmp.*"))
	if len(left) != 0 {
		t.Fatalf("temp files left behind: %v", left)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("nil must map to 0")
	}
	if ExitCode(Usagef("bad flag %s", "x")) != 2 {
		t.Fatalf("usage errors must map to 2")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Fatalf("runtime errors must map to 1")
	}
}
