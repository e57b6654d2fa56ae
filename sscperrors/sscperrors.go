package sscperrors

import "fmt"

// Path identifies which side of the connection produced the error.
type Path string

const (
	PathClient Path = "client"
	PathServer Path = "server"
)

// Stage identifies which step of the connection lifecycle failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageAdmission Stage = "admission"
	StageConnect   Stage = "connect"
	StageHandshake Stage = "handshake"
	StageSession   Stage = "session"
	StageSend      Stage = "send"
	StageClose     Stage = "close"
)

// Code is a stable, programmatic error identifier for user-facing operations.
type Code string

const (
	CodeTimeout          Code = "timeout"
	CodeCanceled         Code = "canceled"
	CodeInvalidInput     Code = "invalid_input"
	CodeInvalidOption    Code = "invalid_option"
	CodeDialFailed       Code = "dial_failed"
	CodeUpgradeFailed    Code = "upgrade_failed"
	CodeBanned           Code = "banned"
	CodeServerFull       Code = "server_full"
	CodeServerStopped    Code = "server_stopped"
	CodeHandshakeFailed  Code = "handshake_failed"
	CodeIntegrityFailed  Code = "integrity_failed"
	CodeReplayDetected   Code = "replay_detected"
	CodeKeepAliveTimeout Code = "keepalive_timeout"
	CodeNotConnected     Code = "not_connected"
	CodeUserNotFound     Code = "user_not_found"
	CodePeerClosed       Code = "peer_closed"
	CodeTransportFailed  Code = "transport_failed"
)

// Error is a structured, programmatically identifiable error for user-facing operations.
type Error struct {
	Path  Path
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Path, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Path, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(path Path, stage Stage, code Code, err error) error {
	return &Error{Path: path, Stage: stage, Code: code, Err: err}
}

// WrapClassified wraps err with the code Classify picks for it.
func WrapClassified(path Path, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return Wrap(path, stage, Classify(err), err)
}
