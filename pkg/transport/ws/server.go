package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/chazu/sdfworld/pkg/netsync"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server streams an authority's log to every connected proxy.
type Server struct {
	sender *netsync.Sender
	opts   Options
	log    *zap.Logger
	codec  *codec

	upgrader websocket.Upgrader
}

func NewServer(sender *netsync.Sender, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		sender: sender,
		opts:   opts,
		log:    opts.Logger,
		codec:  newCodec(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Close releases the frame codec. Call it after the HTTP server stopped.
func (s *Server) Close() {
	s.codec.close()
}

// Handler upgrades the request and registers the connection as a new peer
// until it closes.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameSize)

		id := uuid.New()
		log := s.log.With(zap.Stringer("peer", id), zap.String("remote", r.RemoteAddr))
		s.sender.AddPeer(id)
		defer s.sender.RemovePeer(id)
		log.Info("peer connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			defer cancel()
			s.writeLoop(ctx, conn, id, log)
		}()

		s.readLoop(ctx, conn, id, log)
		cancel()
		<-done
		log.Info("peer disconnected")
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, id uuid.UUID, log *zap.Logger) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		msgs, err := s.sender.PollPeer(id, time.Now())
		if err != nil {
			log.Error("poll failed", zap.Error(err))
			return
		}
		for _, m := range msgs {
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, s.codec.compress(m.Data)); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id uuid.UUID, log *zap.Logger) {
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()
	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		data, err := s.codec.decompress(frame)
		if err != nil {
			log.Warn("bad frame", zap.Error(err))
			continue
		}
		env, err := netsync.Decode(data)
		if err != nil || env.Kind != netsync.KindRequest {
			log.Warn("unexpected envelope", zap.Error(err))
			continue
		}
		if env.Peer != id {
			log.Warn("request for another peer", zap.Stringer("claimed", env.Peer))
			continue
		}
		s.sender.RequestMissing(id, env.ClearCount, env.ModificationCount)
	}
}
