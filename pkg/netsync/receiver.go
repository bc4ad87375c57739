package netsync

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultResyncInterval is the minimum time between resync requests.
const DefaultResyncInterval = 500 * time.Millisecond

type ReceiverOptions struct {
	Logger         *zap.Logger
	ResyncInterval time.Duration
	// Now is the clock used for throttling. Nil means time.Now.
	Now func() time.Time
}

// Receiver applies envelopes from an authority to a replica.
type Receiver struct {
	replica Replica
	log     *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time

	mu   sync.Mutex
	peer uuid.UUID
}

func NewReceiver(replica Replica, opts ReceiverOptions) *Receiver {
	r := &Receiver{
		replica: replica,
		log:     opts.Logger,
		now:     opts.Now,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	interval := opts.ResyncInterval
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	r.limiter = rate.NewLimiter(rate.Every(interval), 1)
	return r
}

// Peer is the id the authority assigned to this receiver, learned from the
// first envelope.
func (r *Receiver) Peer() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peer
}

// Receive applies one envelope and returns the reply to send back, if any.
// Desync is not an error: it produces a resync request, at most one per
// resync interval.
func (r *Receiver) Receive(ctx context.Context, data []byte) ([]byte, error) {
	env, err := Decode(data)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.peer = env.Peer
	r.mu.Unlock()

	switch env.Kind {
	case KindModifications:
		ok, err := r.replica.ReadModifications(ctx, bytes.NewReader(env.Payload))
		if err != nil {
			return nil, fmt.Errorf("netsync: receive: %w", err)
		}
		if !ok {
			return r.request("gap"), nil
		}
	case KindHeartbeat:
		clearCount := r.replica.ClearCount()
		if env.ClearCount < clearCount {
			return nil, nil
		}
		if env.ClearCount != clearCount || env.ModificationCount != r.replica.ModificationCount() {
			return r.request("heartbeat mismatch"), nil
		}
	default:
		return nil, fmt.Errorf("netsync: proxy got a %s envelope", env.Kind)
	}
	return nil, nil
}

func (r *Receiver) request(reason string) []byte {
	clearCount, count := r.replica.ClearCount(), r.replica.ModificationCount()
	if !r.limiter.AllowN(r.now(), 1) {
		r.log.Debug("resync throttled", zap.String("reason", reason))
		return nil
	}
	r.log.Info("requesting resync",
		zap.String("reason", reason),
		zap.Int("clearCount", clearCount),
		zap.Int("count", count))
	return Envelope{
		Kind:              KindRequest,
		Peer:              r.Peer(),
		ClearCount:        clearCount,
		ModificationCount: count,
	}.Encode()
}
