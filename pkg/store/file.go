package store

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/sdfworld/pkg/world"
	"github.com/klauspost/compress/zstd"
)

const (
	fileFormat  = "sdfworld.snapshot"
	fileVersion = 1
)

// fileHeader is the JSON line in front of the gob payload, readable with
// zstdcat without decoding the log.
type fileHeader struct {
	Format     string `json:"format"`
	Version    int    `json:"version"`
	ClearCount int    `json:"clearCount"`
	Count      int    `json:"count"`
}

// WriteSnapshotFile writes snap to path as a zstd stream.
func WriteSnapshotFile(path string, snap world.Snapshot) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("store: %w", cerr)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(fileHeader{Format: fileFormat, Version: fileVersion, ClearCount: snap.ClearCount, Count: snap.Count})
	if err != nil {
		return fmt.Errorf("store: header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("store: gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads a file written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (world.Snapshot, error) {
	var snap world.Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, fmt.Errorf("store: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, fmt.Errorf("store: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("store: %s: read header: %w", path, err)
	}
	var h fileHeader
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("store: %s: header: %w", path, err)
	}
	if h.Format != fileFormat || h.Version != fileVersion {
		return snap, fmt.Errorf("store: %s: unsupported format %q version %d", path, h.Format, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("store: %s: gob decode: %w", path, err)
	}
	if snap.ClearCount != h.ClearCount || snap.Count != h.Count {
		return snap, fmt.Errorf("store: %s: header does not match payload", path)
	}
	return snap, nil
}
