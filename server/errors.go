package server

import (
	"errors"
	"fmt"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
)

var (
	ErrBanned        = fmt.Errorf("%w: address banned", sscp.ErrAdmission)
	ErrServerFull    = fmt.Errorf("%w: max users reached", sscp.ErrAdmission)
	ErrServerStopped = fmt.Errorf("%w: server stopped", sscp.ErrAdmission)
	ErrUserNotFound  = errors.New("user not found")
)
