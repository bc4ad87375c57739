// Package ws carries netsync envelopes over websockets. Every envelope is one
// binary frame compressed with zstd.
package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const maxFrameSize = 64 << 20

// Options configures both ends of a connection.
type Options struct {
	Logger *zap.Logger
	// PollInterval is how often the server polls the sender for each peer.
	PollInterval time.Duration
	WriteTimeout time.Duration
	// ReadTimeout bounds the client's wait for the next frame. The authority
	// sends a heartbeat at least every couple of seconds.
	ReadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	return o
}

// codec compresses frames. EncodeAll and DecodeAll are safe for concurrent
// use, so one codec serves every connection of a server.
type codec struct {
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	once sync.Once
}

// newCodec only fails on invalid options, which are fixed here.
func newCodec() *codec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("ws: zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameSize))
	if err != nil {
		panic(fmt.Sprintf("ws: zstd decoder: %v", err))
	}
	return &codec{enc: enc, dec: dec}
}

func (c *codec) compress(p []byte) []byte {
	return c.enc.EncodeAll(p, make([]byte, 0, len(p)/2+16))
}

func (c *codec) decompress(p []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(p, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: decompress frame: %w", err)
	}
	return out, nil
}

func (c *codec) close() {
	c.once.Do(func() {
		_ = c.enc.Close()
		c.dec.Close()
	})
}
