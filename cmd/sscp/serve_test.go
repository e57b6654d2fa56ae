package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZygoteCode/SSCP/client"
	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/rs/zerolog"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type inbox struct {
	client.BaseHandler
	msgs chan []byte
}

func (i *inbox) OnMessage(_ *client.Client, p sscp.Packet) { i.msgs <- p.Data }

// startServe runs `sscp serve` in the background and returns its ready line.
func startServe(t *testing.T, args ...string) ready {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	stderr := &lockedBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, append([]string{"serve", "--listen", "127.0.0.1:0"}, args...), strings.NewReader(""), pw, stderr)
		_ = pw.Close()
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case code := <-done:
			if code != 0 {
				t.Errorf("serve exited with %d: %s", code, stderr.String())
			}
		case <-time.After(10 * time.Second):
			t.Errorf("serve did not stop")
		}
	})

	var out ready
	if err := json.NewDecoder(pr).Decode(&out); err != nil {
		t.Fatalf("read ready line: %v (stderr=%s)", err, stderr.String())
	}
	go func() { _, _ = io.Copy(io.Discard, pr) }()
	return out
}

func TestServeEchoAndMetrics(t *testing.T) {
	out := startServe(t, "--metrics-listen", "127.0.0.1:0", "--max-users", "3")
	if out.WSPath != sscp.DefaultPath || !strings.HasPrefix(out.WSURL, "ws://127.0.0.1:") || out.MetricsURL == "" {
		t.Fatalf("unexpected ready output %+v", out)
	}

	in := &inbox{msgs: make(chan []byte, 4)}
	c, err := client.New(out.WSURL, client.WithHandler(in))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()
	if err := c.Send(ctx, []byte("hello sscp")); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-in.msgs:
		if string(msg) != "hello sscp" {
			t.Fatalf("echo = %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no echo")
	}

	resp, err := http.Get(out.MetricsURL)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sscp_server_admission_total") {
		t.Fatalf("metrics missing admission counter")
	}

	resp, err = http.Get(strings.TrimSuffix(out.MetricsURL, "/metrics") + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var st statsJSON
	err = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if st.MaxUsers != 3 || st.Users != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	resp, err = http.Get(out.HealthzURL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
}

func TestConnectCommandPrintsEcho(t *testing.T) {
	out := startServe(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"connect", out.WSURL, "--linger", "300ms"}, strings.NewReader("one\ntwo\n"), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("connect exited with %d: %s", code, stderr.String())
	}
	if got := stdout.String(); got != "one\ntwo\n" {
		t.Fatalf("connect output = %q", got)
	}
}

func TestServeEnvAndConfigLayering(t *testing.T) {
	t.Setenv("SSCP_MAX_USERS", "9")
	t.Setenv("SSCP_PATH", "/env/")
	a := &app{env: cmdutil.Env{Prefix: envPrefix}, stdout: io.Discard, stderr: io.Discard, log: zerolog.Nop()}
	cmd, f := a.newServeCmd()
	if err := cmd.ParseFlags([]string{"--path", "/flag/"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := a.resolveServe(cmd, f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.MaxUsers != 9 {
		t.Fatalf("env override lost: %d", cfg.Server.MaxUsers)
	}
	if cfg.Server.Path != "/flag/" {
		t.Fatalf("flag must win over env, got %q", cfg.Server.Path)
	}
}

func TestServeConfigFileLogLevel(t *testing.T) {
	p := t.TempDir() + "/sscp.toml"
	if err := os.WriteFile(p, []byte("log_level = \"shout\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runCLI(t, "", "serve", "--config", p, "--listen", "127.0.0.1:0")
	if code != 2 {
		t.Fatalf("expected usage exit for bad log_level, got %d (%s)", code, stderr)
	}
}
