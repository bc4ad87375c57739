package world

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/sdfworld/pkg/sdf"
	"go.uber.org/zap"
)

// MaxModificationsPerMessage caps the entries carried by one message.
const MaxModificationsPerMessage = 256

var errUnresolved = errors.New("modification for a resource unknown to this world")

// WriteModifications writes the entries of the log following prev, at most
// MaxModificationsPerMessage of them, and returns how many were written.
//
// The message is a header of four little-endian int32 values
// (ClearCount, prev, count, ModificationCount) followed by count entries of
// [operator byte][resource id int32][shape type int32][shape payload].
func (w *World[K, S]) WriteModifications(out io.Writer, prev int) (int, error) {
	w.mu.RLock()
	clearCount := w.clearCount
	total := len(w.mods)
	if prev < 0 || prev > total {
		w.mu.RUnlock()
		return 0, fmt.Errorf("world: write modifications: prev %d outside [0, %d]", prev, total)
	}
	count := min(MaxModificationsPerMessage, total-prev)
	batch := append([]Modification[S](nil), w.mods[prev:prev+count]...)
	w.mu.RUnlock()

	bw := sdf.NewWriter(out)
	bw.Int32(int32(clearCount))
	bw.Int32(int32(prev))
	bw.Int32(int32(count))
	bw.Int32(int32(total))
	for _, m := range batch {
		if err := w.writeEntry(bw, m); err != nil {
			return 0, fmt.Errorf("world: write modifications: %w", err)
		}
	}
	if err := bw.Err(); err != nil {
		return 0, fmt.Errorf("world: write modifications: %w", err)
	}
	return count, nil
}

// ReadModifications applies a message written by WriteModifications. It
// returns false when the message does not follow the local log, in which case
// the caller should ask the authority to resend from ModificationCount.
//
// A message from an older epoch is ignored. A message from a newer epoch
// clears the world and adopts that epoch first. Entries naming a resource
// missing from the library are dropped with a warning and not retried.
func (w *World[K, S]) ReadModifications(ctx context.Context, in io.Reader) (bool, error) {
	br := sdf.NewReader(in)
	clearCount := int(br.Int32())
	prev := int(br.Int32())
	count := int(br.Int32())
	total := int(br.Int32())
	if err := br.Err(); err != nil {
		return false, fmt.Errorf("world: read modifications: %w", err)
	}
	if count < 0 || count > MaxModificationsPerMessage || prev < 0 || prev+count > total {
		return false, fmt.Errorf("world: read modifications: bad header prev=%d count=%d total=%d", prev, count, total)
	}
	if w.destroyed.Load() {
		return false, ErrDestroyed
	}

	ours := w.ClearCount()
	if clearCount < ours {
		return true, nil
	}

	entries, err := w.readEntries(br, count, true)
	if err != nil {
		return false, fmt.Errorf("world: read modifications: %w", err)
	}

	if clearCount > ours {
		w.editMu.Lock()
		err := w.resetLocked(ctx, clearCount)
		w.editMu.Unlock()
		if err != nil {
			return false, err
		}
	}

	if prev != w.ModificationCount() {
		return false, nil
	}

	release := w.Receive()
	defer release()
	for _, m := range entries {
		if m.Resource == nil {
			if err := w.appendUnresolved(m); err != nil {
				return false, err
			}
			continue
		}
		if err := w.Apply(ctx, m); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (w *World[K, S]) writeEntry(bw *sdf.Writer, m Modification[S]) error {
	if m.Resource == nil {
		return errUnresolved
	}
	bw.Byte(byte(m.Operator))
	bw.Int32(int32(m.Resource.ID))
	if err := w.dim.WriteShape(bw, m.Shape); err != nil {
		return err
	}
	return bw.Err()
}

// readEntries decodes count entries. With skipUnknown set, entries for
// unknown resources come back with a nil Resource; otherwise they fail.
// A nil-resource entry still takes its slot in the log so counts match
// the sender's.
func (w *World[K, S]) readEntries(br *sdf.Reader, count int, skipUnknown bool) ([]Modification[S], error) {
	entries := make([]Modification[S], 0, count)
	for i := 0; i < count; i++ {
		op := sdf.Operator(br.Byte())
		id := sdf.ResourceID(br.Int32())
		if err := br.Err(); err != nil {
			return nil, err
		}
		if !op.Valid() {
			return nil, fmt.Errorf("entry %d: invalid operator %d", i, op)
		}
		shape, err := w.dim.ReadShape(br)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		var res *sdf.Resource
		if w.lib != nil {
			res, _ = w.lib.Get(id)
		}
		if res == nil {
			if !skipUnknown {
				return nil, fmt.Errorf("entry %d: unknown resource id %d", i, id)
			}
			w.log.Warn("ignoring modification for unknown resource",
				zap.Int32("resourceId", int32(id)),
				zap.Stringer("op", op))
		}
		entries = append(entries, Modification[S]{Shape: shape, Resource: res, Operator: op})
	}
	return entries, nil
}

// Snapshot is a serialized copy of a world's log.
type Snapshot struct {
	ClearCount int
	Count      int
	Data       []byte
}

// Snapshot encodes the epoch and the whole modification log.
func (w *World[K, S]) Snapshot() (Snapshot, error) {
	w.mu.RLock()
	clearCount := w.clearCount
	mods := append([]Modification[S](nil), w.mods...)
	w.mu.RUnlock()

	var buf bytes.Buffer
	bw := sdf.NewWriter(&buf)
	for _, m := range mods {
		if err := w.writeEntry(bw, m); err != nil {
			return Snapshot{}, fmt.Errorf("world: snapshot: %w", err)
		}
	}
	return Snapshot{ClearCount: clearCount, Count: len(mods), Data: buf.Bytes()}, nil
}

// Restore replaces the log with a snapshot and rebuilds every chunk it
// reaches. Unlike ReadModifications, unknown resources are an error.
func (w *World[K, S]) Restore(ctx context.Context, snap Snapshot) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	mods, err := w.readEntries(sdf.NewReader(bytes.NewReader(snap.Data)), snap.Count, false)
	if err != nil {
		return fmt.Errorf("world: restore: %w", err)
	}
	w.editMu.Lock()
	defer w.editMu.Unlock()
	if w.destroyed.Load() {
		return ErrDestroyed
	}
	return w.replaceLocked(ctx, mods, nil, snap.ClearCount)
}
