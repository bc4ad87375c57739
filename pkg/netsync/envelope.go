// Package netsync replicates a world's modification log from one authority
// to any number of proxies over an unreliable message channel.
//
// The authority keeps a cursor per peer and streams the log suffix after it,
// falling back to an empty heartbeat when there is nothing new. A proxy that
// sees a message not following its own log, or a heartbeat announcing counts
// it does not have, asks the authority to resend from its local count. There
// is no acknowledgement: a lost message is noticed on the next one.
package netsync

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/google/uuid"
)

// Kind tags an envelope.
type Kind byte

const (
	// KindModifications carries a world.WriteModifications message.
	KindModifications Kind = iota + 1
	// KindRequest asks the authority to resend from the sender's counts.
	KindRequest
	// KindHeartbeat announces the authority's counts.
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindModifications:
		return "modifications"
	case KindRequest:
		return "request"
	case KindHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

const headerSize = 1 + 16 + 4 + 4

// ErrMalformed is returned by Decode for truncated or unknown envelopes.
var ErrMalformed = errors.New("netsync: malformed envelope")

// Envelope is one message between an authority and a proxy. Peer names the
// proxy in both directions. The counts are the sender's (ClearCount,
// ModificationCount) clock.
type Envelope struct {
	Kind              Kind
	Peer              uuid.UUID
	ClearCount        int
	ModificationCount int
	Payload           []byte
}

// Encode lays the envelope out as
// [kind byte][peer 16 bytes][clear count int32][modification count int32][payload].
func (e Envelope) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(e.Payload))
	w := sdf.NewWriter(&buf)
	w.Byte(byte(e.Kind))
	buf.Write(e.Peer[:])
	w.Int32(int32(e.ClearCount))
	w.Int32(int32(e.ModificationCount))
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses an encoded envelope. The payload aliases data.
func Decode(data []byte) (Envelope, error) {
	if len(data) < headerSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	e := Envelope{Kind: Kind(data[0])}
	if e.Kind < KindModifications || e.Kind > KindHeartbeat {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, e.Kind)
	}
	copy(e.Peer[:], data[1:17])
	r := sdf.NewReader(bytes.NewReader(data[17:headerSize]))
	e.ClearCount = int(r.Int32())
	e.ModificationCount = int(r.Int32())
	if err := r.Err(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.ClearCount < 0 || e.ModificationCount < 0 {
		return Envelope{}, fmt.Errorf("%w: negative counts", ErrMalformed)
	}
	if len(data) > headerSize {
		e.Payload = data[headerSize:]
	}
	return e, nil
}
