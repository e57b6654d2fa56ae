package server

import (
	"errors"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/observability"
)

// superviseKeepAlive emits keep-alives to u and kicks it once its replies go stale.
func (s *Server) superviseKeepAlive(u *User) {
	err := u.sess.Supervise(s.ctx, s.cfg.KeepAliveInterval, true)
	if errors.Is(err, sscp.ErrKeepAliveTimeout) {
		s.log.Debug().Str("user", u.String()).Msg("keep-alive timeout")
		s.teardown(u, observability.CloseReasonKeepAliveTimeout, true)
	}
}
