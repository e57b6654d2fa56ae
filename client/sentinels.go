package client

import "errors"

var (
	ErrInvalidURL       = errors.New("invalid server url")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	// ErrSubprotocol indicates the server did not negotiate the SSCP websocket subprotocol.
	ErrSubprotocol = errors.New("server did not negotiate the sscp subprotocol")
)
