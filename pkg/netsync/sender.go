package netsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHeartbeat is how long a caught-up peer waits between heartbeats.
const DefaultHeartbeat = 2 * time.Second

// Log is the authority side of a world.
type Log interface {
	ClearCount() int
	ModificationCount() int
	WriteModifications(out io.Writer, prev int) (int, error)
}

// Replica is the proxy side of a world.
type Replica interface {
	ClearCount() int
	ModificationCount() int
	ReadModifications(ctx context.Context, in io.Reader) (bool, error)
}

// SenderOptions configures a Sender.
type SenderOptions struct {
	Logger    *zap.Logger
	Heartbeat time.Duration
	// BatchesPerPoll bounds the messages queued for one peer by one Poll.
	// Zero means 8.
	BatchesPerPoll int
}

// Message is an encoded envelope addressed to one peer.
type Message struct {
	Peer uuid.UUID
	Data []byte
}

type peerState struct {
	clearCount int
	next       int
	lastSent   time.Time
}

// Sender tracks what each proxy has been sent.
type Sender struct {
	src       Log
	log       *zap.Logger
	heartbeat time.Duration
	batches   int

	mu    sync.Mutex
	peers map[uuid.UUID]*peerState
}

func NewSender(src Log, opts SenderOptions) *Sender {
	s := &Sender{
		src:       src,
		log:       opts.Logger,
		heartbeat: opts.Heartbeat,
		batches:   opts.BatchesPerPoll,
		peers:     make(map[uuid.UUID]*peerState),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.heartbeat <= 0 {
		s.heartbeat = DefaultHeartbeat
	}
	if s.batches <= 0 {
		s.batches = 8
	}
	return s
}

// AddPeer starts streaming the whole log to id.
func (s *Sender) AddPeer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[id] = &peerState{clearCount: s.src.ClearCount()}
	s.log.Debug("peer added", zap.Stringer("peer", id))
}

func (s *Sender) RemovePeer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	s.log.Debug("peer removed", zap.Stringer("peer", id))
}

// Peers returns the registered peers in a stable order.
func (s *Sender) Peers() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerIDsLocked()
}

func (s *Sender) peerIDsLocked() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// Poll returns the messages due at now: the log entries each peer has not
// been sent yet, or a heartbeat for peers that are caught up and have been
// quiet for the heartbeat interval.
func (s *Sender) Poll(now time.Time) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Message
	for _, id := range s.peerIDsLocked() {
		msgs, err := s.pollPeer(id, s.peers[id], now)
		if err != nil {
			return out, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// PollPeer is Poll for a single peer. It returns nothing for unknown peers.
func (s *Sender) PollPeer(id uuid.UUID, now time.Time) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		return nil, nil
	}
	return s.pollPeer(id, p, now)
}

func (s *Sender) pollPeer(id uuid.UUID, p *peerState, now time.Time) ([]Message, error) {
	clearCount := s.src.ClearCount()
	if p.clearCount != clearCount {
		p.clearCount = clearCount
		p.next = 0
	}
	total := s.src.ModificationCount()
	p.next = min(p.next, total)

	var out []Message
	for i := 0; i < s.batches && p.next < total; i++ {
		var buf bytes.Buffer
		n, err := s.src.WriteModifications(&buf, p.next)
		if err != nil {
			return out, fmt.Errorf("netsync: poll %s: %w", id, err)
		}
		p.next += n
		p.lastSent = now
		out = append(out, Message{Peer: id, Data: Envelope{
			Kind:              KindModifications,
			Peer:              id,
			ClearCount:        clearCount,
			ModificationCount: total,
			Payload:           buf.Bytes(),
		}.Encode()})
	}
	if len(out) == 0 && now.Sub(p.lastSent) >= s.heartbeat {
		p.lastSent = now
		out = append(out, Message{Peer: id, Data: Envelope{
			Kind:              KindHeartbeat,
			Peer:              id,
			ClearCount:        clearCount,
			ModificationCount: total,
		}.Encode()})
	}
	return out, nil
}

// RequestMissing rewinds the cursor of id to the counts the peer reported.
// A peer from another epoch is resent the whole log. It reports false when id
// is not a registered peer.
func (s *Sender) RequestMissing(id uuid.UUID, clearCount, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	if !ok {
		s.log.Warn("resync request from unknown peer", zap.Stringer("peer", id))
		return false
	}
	current := s.src.ClearCount()
	p.clearCount = current
	if clearCount != current {
		p.next = 0
	} else {
		p.next = max(0, min(count, s.src.ModificationCount()))
	}
	s.log.Debug("resync requested",
		zap.Stringer("peer", id),
		zap.Int("clearCount", clearCount),
		zap.Int("from", p.next))
	return true
}

// Handle applies an envelope received from a proxy.
func (s *Sender) Handle(data []byte) error {
	env, err := Decode(data)
	if err != nil {
		return err
	}
	if env.Kind != KindRequest {
		return fmt.Errorf("netsync: authority got a %s envelope", env.Kind)
	}
	s.RequestMissing(env.Peer, env.ClearCount, env.ModificationCount)
	return nil
}
