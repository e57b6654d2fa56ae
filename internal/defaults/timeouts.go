package defaults

import "time"

const (
	// ConnectTimeout is the default timeout for establishing a WebSocket connection.
	ConnectTimeout = 10 * time.Second
	// HandshakeTimeout is the default timeout for reaching an established SSCP session.
	HandshakeTimeout = 10 * time.Second
	// ShutdownTimeout bounds graceful HTTP shutdown in binaries.
	ShutdownTimeout = 5 * time.Second
)
