package sscperrors

import (
	"context"
	"errors"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/gorilla/websocket"
)

// Classify maps an error from the protocol engine or transport to a stable Code.
func Classify(err error) Code {
	var se *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sscp.ErrHandshakeTimeout):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, sscp.ErrKeepAliveTimeout):
		return CodeKeepAliveTimeout
	case errors.Is(err, sscp.ErrIntegrity):
		return CodeIntegrityFailed
	case errors.Is(err, sscp.ErrReplay):
		return CodeReplayDetected
	case errors.Is(err, sscp.ErrHandshake):
		return CodeHandshakeFailed
	case errors.Is(err, sscp.ErrSessionClosed):
		return CodeNotConnected
	}
	if code, ok := ClassifyCloseCode(err); ok {
		return code
	}
	return CodeTransportFailed
}

// ClassifyCloseCode reports whether err is a websocket close from the peer.
func ClassifyCloseCode(err error) (Code, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	switch ce.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return CodePeerClosed, true
	default:
		return CodeTransportFailed, true
	}
}
