package ws

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestHandshakeKey(t *testing.T) {
	req := httptest.NewRequest("GET", "http://127.0.0.1/SSCP/", nil)
	req.Header.Set("Connection", "keep-alive, Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	key, err := HandshakeKey(req)
	if err != nil {
		t.Fatal(err)
	}
	if key != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Fatalf("got %q", key)
	}

	req.Header.Set("Sec-WebSocket-Key", "c2hvcnQ=")
	if _, err := HandshakeKey(req); !errors.Is(err, ErrBadHandshake) {
		t.Fatalf("expected ErrBadHandshake, got %v", err)
	}
	req.Header.Set("Sec-WebSocket-Version", "8")
	if _, err := HandshakeKey(req); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
	req.Header.Del("Upgrade")
	if _, err := HandshakeKey(req); !errors.Is(err, ErrNotUpgrade) {
		t.Fatalf("expected ErrNotUpgrade, got %v", err)
	}
}
