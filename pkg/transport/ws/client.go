package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/chazu/sdfworld/pkg/netsync"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client feeds a proxy from a Server.
type Client struct {
	conn  *websocket.Conn
	recv  *netsync.Receiver
	opts  Options
	log   *zap.Logger
	codec *codec
}

// Dial connects to the websocket endpoint at url.
func Dial(ctx context.Context, url string, recv *netsync.Receiver, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &Client{
		conn:  conn,
		recv:  recv,
		opts:  opts,
		log:   opts.Logger.With(zap.String("server", url)),
		codec: newCodec(),
	}, nil
}

// Run applies frames until ctx is done or the server goes away. It returns
// nil in both cases.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return fmt.Errorf("ws: no frame from server in %s", c.opts.ReadTimeout)
			}
			return fmt.Errorf("ws: read: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		data, err := c.codec.decompress(frame)
		if err != nil {
			return err
		}
		reply, err := c.recv.Receive(ctx, data)
		if err != nil {
			return err
		}
		if reply == nil {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, c.codec.compress(reply)); err != nil {
			return fmt.Errorf("ws: write: %w", err)
		}
	}
}

// Close drops the connection.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.codec.close()
	return err
}
