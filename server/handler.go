package server

import "github.com/ZygoteCode/SSCP/crypto/sscp"

// Handler receives user lifecycle events and application packets.
//
// OnConnected and OnMessage run on the user's receive goroutine, so a user's packets are
// delivered in order and after OnConnected. OnDisconnected and OnKicked run on whichever
// goroutine tears the user down. Users that never complete the handshake produce no events.
type Handler interface {
	OnConnected(u *User)
	OnMessage(u *User, p sscp.Packet)
	OnDisconnected(u *User)
	OnKicked(u *User)
}

// BaseHandler implements Handler with no-ops; embed it to override selectively.
type BaseHandler struct{}

func (BaseHandler) OnConnected(*User)            {}
func (BaseHandler) OnMessage(*User, sscp.Packet) {}
func (BaseHandler) OnDisconnected(*User)         {}
func (BaseHandler) OnKicked(*User)               {}
