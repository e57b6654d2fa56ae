package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZygoteCode/SSCP/client"
	"github.com/ZygoteCode/SSCP/crypto/sscp"
	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/ZygoteCode/SSCP/internal/defaults"
	"github.com/spf13/cobra"
)

type connectFlags struct {
	connectTimeout   time.Duration
	maxTimestampSkew time.Duration
	linger           time.Duration
}

// printer writes received messages to stdout, one per line.
type printer struct {
	client.BaseHandler
	mu   sync.Mutex
	out  io.Writer
	gone chan error
}

func (p *printer) OnMessage(_ *client.Client, pkt sscp.Packet) {
	if pkt.Type != sscp.PacketData {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", pkt.Data)
}

func (p *printer) OnDisconnected(_ *client.Client, err error) {
	select {
	case p.gone <- err:
	default:
	}
}

func (a *app) connectCmd() *cobra.Command {
	f := &connectFlags{}
	defaultURL := fmt.Sprintf("ws://127.0.0.1:%d%s", sscp.DefaultPort, sscp.DefaultPath)
	cmd := &cobra.Command{
		Use:   "connect [url]",
		Short: "Send stdin lines to an SSCP server and print what it sends back",
		Long:  "Connect to an SSCP server (default " + defaultURL + "), send each stdin line as a DATA packet and print received DATA packets.",
		Args:  maxOneArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.env.String("URL", defaultURL)
			if len(args) == 1 {
				url = args[0]
			}
			return a.connect(cmd.Context(), url, f)
		},
	}
	fl := cmd.Flags()
	fl.DurationVar(&f.connectTimeout, "connect-timeout", defaults.ConnectTimeout, "websocket connect timeout")
	fl.DurationVar(&f.maxTimestampSkew, "max-timestamp-skew", sscp.MaxTimestampSkew, "allowed clock skew for frames and keep-alives")
	fl.DurationVar(&f.linger, "linger", 0, "time to keep receiving after stdin ends")
	return cmd
}

func (a *app) connect(ctx context.Context, url string, f *connectFlags) error {
	p := &printer{out: a.stdout, gone: make(chan error, 1)}
	c, err := client.New(url,
		client.WithHandler(p),
		client.WithLogger(a.log),
		client.WithConnectTimeout(f.connectTimeout),
		client.WithMaxTimestampSkew(f.maxTimestampSkew),
	)
	if err != nil {
		return cmdutil.Usagef("%v", err)
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	a.log.Info().Str("id", c.ID()).Str("ip", c.IP()).Int("port", c.Port()).Msg("connected")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.stdin)
		sc.Buffer(make([]byte, 64*1024), sscp.DefaultMaxFrameBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if f.linger > 0 {
					select {
					case <-time.After(f.linger):
					case err := <-p.gone:
						return err
					case <-ctx.Done():
					}
				}
				return c.Disconnect()
			}
			if err := c.Send(ctx, []byte(line)); err != nil {
				return err
			}
		case err := <-p.gone:
			return err
		case <-ctx.Done():
			return c.Disconnect()
		}
	}
}
