package client

import "github.com/ZygoteCode/SSCP/crypto/sscp"

// Handler receives connection events. OnConnected and OnMessage run on the receive goroutine.
// OnDisconnected fires once per established connection with the terminal error.
type Handler interface {
	OnConnected(c *Client)
	OnMessage(c *Client, p sscp.Packet)
	OnDisconnected(c *Client, err error)
}

// BaseHandler implements Handler with no-ops.
type BaseHandler struct{}

func (BaseHandler) OnConnected(*Client)            {}
func (BaseHandler) OnMessage(*Client, sscp.Packet) {}
func (BaseHandler) OnDisconnected(*Client, error)  {}
