package apicheck

import (
	"net"
	"testing"

	"github.com/ZygoteCode/SSCP/client"
	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/observability"
	"github.com/ZygoteCode/SSCP/observability/prom"
	"github.com/ZygoteCode/SSCP/realtime/ws"
	"github.com/ZygoteCode/SSCP/server"
	"github.com/ZygoteCode/SSCP/sscperrors"
	"github.com/ZygoteCode/SSCP/stream"
)

// Compile-time checks for the intended stable Go API surface. If an entrypoint is renamed or
// removed, this file fails to compile.
var (
	// crypto/sscp
	_ = sscp.NewClientSession
	_ = sscp.NewServerSession
	_ = (*sscp.Session).Run
	_ = (*sscp.Session).Send
	_ = sscp.NewEncoder
	_ = sscp.NewDecoder
	_ = sscp.NewServerHandshake
	_ = sscp.NewClientHandshake
	_ = sscp.GenerateConnectionID
	_ = sscp.GeneratePacketID
	_ = sscp.PacketType.Known

	// server
	_ = server.New
	_ = server.DefaultConfig
	_ = (*server.Server).ServeHTTP
	_ = (*server.Server).Broadcast
	_ = (*server.Server).SendTo
	_ = (*server.Server).Kick
	_ = (*server.Server).Ban
	_ = (*server.Server).Stop
	_ = server.Unlimited

	// client
	_ = client.New
	_ = (*client.Client).Connect
	_ = (*client.Client).Disconnect
	_ = (*client.Client).Send

	// stream
	_ = stream.Client
	_ = stream.Server

	// sscperrors
	_ = sscperrors.Classify
)

var (
	_ sscperrors.Path
	_ sscperrors.Stage
	_ sscperrors.Code
)

// Interface conformance.
var (
	_ sscp.Transport               = (*sscp.WebSocketTransport)(nil)
	_ sscp.MessageConn             = (*ws.Conn)(nil)
	_ server.Handler               = server.BaseHandler{}
	_ client.Handler               = client.BaseHandler{}
	_ net.Conn                     = (*stream.Conn)(nil)
	_ observability.ServerObserver = (*prom.ServerObserver)(nil)
	_ observability.ServerObserver = (*observability.AtomicServerObserver)(nil)
	_ observability.ServerObserver = observability.NoopServerObserver
)

// Packet type codes and wire sizes are shared with peers written in other languages.
func TestWireContractValues(t *testing.T) {
	if sscp.PacketData != 0 || sscp.PacketKeepAlive != 1 || sscp.PacketStream != 2 {
		t.Fatalf("packet type codes changed")
	}
	if sscp.PacketType(3).Known() || sscp.PacketType(-1).Known() {
		t.Fatalf("packet type enumeration must stay closed")
	}
	if sscp.GeneratedKeyPartSize != 5 || sscp.HashSize != 32 || sscp.IVSize != 16 || sscp.ConnectionIDSize != 64 {
		t.Fatalf("wire sizes changed")
	}
	if sscp.DefaultPath != "/SSCP/" || sscp.DefaultPort != 9987 || ws.Subprotocol != "SSCP" {
		t.Fatalf("endpoint defaults changed")
	}
}
