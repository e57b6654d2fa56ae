package ws

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNotUpgrade   = errors.New("not a websocket upgrade request")
	ErrBadVersion   = errors.New("unsupported websocket version")
	ErrBadHandshake = errors.New("invalid Sec-WebSocket-Key")
)

// HandshakeKey validates the upgrade headers of r and returns its Sec-WebSocket-Key.
// Both peers derive the connection secret from this value.
func HandshakeKey(r *http.Request) (string, error) {
	if r.Method != http.MethodGet {
		return "", ErrNotUpgrade
	}
	if !headerHasToken(r.Header, "Connection", "upgrade") || !headerHasToken(r.Header, "Upgrade", "websocket") {
		return "", ErrNotUpgrade
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return "", ErrBadVersion
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 16 {
		return "", ErrBadHandshake
	}
	return key, nil
}

func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
