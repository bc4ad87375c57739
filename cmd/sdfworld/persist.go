package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/sdfworld/pkg/config"
	"github.com/chazu/sdfworld/pkg/store"
	"go.uber.org/zap"
)

// persistence saves and restores an authority world. Either target may be
// unset.
type persistence struct {
	db   *store.Store
	file string
	keep int
	log  *zap.Logger
}

func openPersistence(spec config.StoreSpec, logger *zap.Logger) (*persistence, error) {
	p := &persistence{file: spec.SnapshotFile, keep: spec.Keep, log: logger}
	if spec.Database != "" {
		db, err := store.Open(spec.Database)
		if err != nil {
			return nil, err
		}
		p.db = db
	}
	return p, nil
}

func (p *persistence) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Restore loads the newest snapshot into app: the database first, then the
// snapshot file. A fresh store leaves app untouched.
func (p *persistence) Restore(ctx context.Context, app *App) error {
	if p.db != nil {
		snap, err := p.db.LoadSnapshot(ctx)
		switch {
		case err == nil:
			p.log.Info("restoring from database", zap.Int("clearCount", snap.ClearCount), zap.Int("count", snap.Count))
			return app.world.Restore(ctx, snap)
		case !errors.Is(err, store.ErrNoSnapshot):
			return err
		}
	}
	if p.file != "" {
		snap, err := store.ReadSnapshotFile(p.file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		p.log.Info("restoring from file", zap.String("path", p.file), zap.Int("count", snap.Count))
		return app.world.Restore(ctx, snap)
	}
	return nil
}

// Save writes the world's log to every configured target and prunes the
// database history.
func (p *persistence) Save(ctx context.Context, app *App) error {
	if p.db == nil && p.file == "" {
		return nil
	}
	app.mu.Lock()
	snap, err := app.world.Snapshot()
	app.mu.Unlock()
	if err != nil {
		return err
	}
	if p.db != nil {
		id, err := p.db.SaveSnapshot(ctx, snap)
		if err != nil {
			return err
		}
		pruned, err := p.db.Prune(ctx, p.keep)
		if err != nil {
			return err
		}
		p.log.Info("snapshot saved", zap.Int64("id", id), zap.Int("count", snap.Count), zap.Int64("pruned", pruned))
	}
	if p.file != "" {
		if err := store.WriteSnapshotFile(p.file, snap); err != nil {
			return fmt.Errorf("save %s: %w", p.file, err)
		}
		p.log.Info("snapshot written", zap.String("path", p.file), zap.Int("count", snap.Count))
	}
	return nil
}
