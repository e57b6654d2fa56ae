package main

import (
	"context"

	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/server"
	"github.com/rs/zerolog"
)

// consoleHandler logs user events and optionally echoes DATA packets back to their sender.
type consoleHandler struct {
	log  zerolog.Logger
	echo bool
}

func (h consoleHandler) OnConnected(u *server.User) {
	h.log.Info().Str("ip", u.IP()).Int("port", u.Port()).Str("id", u.ID()).Msg("user connected")
}

func (h consoleHandler) OnMessage(u *server.User, p sscp.Packet) {
	h.log.Info().Str("id", u.ID()).Stringer("type", p.Type).Int("bytes", len(p.Data)).Msg("message received")
	if !h.echo || p.Type != sscp.PacketData {
		return
	}
	if err := u.Send(context.Background(), p.Data); err != nil {
		h.log.Debug().Str("id", u.ID()).Err(err).Msg("echo failed")
	}
}

func (h consoleHandler) OnDisconnected(u *server.User) {
	h.log.Info().Str("id", u.ID()).Msg("user disconnected")
}

func (h consoleHandler) OnKicked(u *server.User) {
	h.log.Info().Str("id", u.ID()).Msg("user kicked")
}
