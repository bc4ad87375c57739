// Command sdfworld edits, serves and follows SDF worlds described by a YAML
// config.
//
//	sdfworld eval -config world.yaml -script cave.sdfw -out meshes.json
//	sdfworld eval -config world.yaml -reference exact.json -dry-run
//	sdfworld serve -config world.yaml
//	sdfworld follow -config world.yaml -url ws://localhost:8080/sync -out meshes.json
//	sdfworld snapshots -config world.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/sdfworld/pkg/config"
	"github.com/chazu/sdfworld/pkg/netsync"
	"github.com/chazu/sdfworld/pkg/store"
	"github.com/chazu/sdfworld/pkg/transport/ws"
	"go.uber.org/zap"
)

func main() {
	cmd, args := "eval", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}
	var err error
	switch cmd {
	case "eval":
		err = evalCmd(args)
	case "serve":
		err = serveCmd(args)
	case "follow":
		err = followCmd(args)
	case "snapshots":
		err = snapshotsCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (eval, serve, follow, snapshots)\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sdfworld:", err)
		os.Exit(1)
	}
}

// setup loads the config named by path and builds its logger.
func setup(path string) (*config.Config, *zap.Logger, error) {
	if path == "" {
		return nil, nil, errors.New("missing -config")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func evalCmd(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", "", "world config (yaml)")
	scriptPath := fs.String("script", "", "script to apply; - reads stdin")
	outPath := fs.String("out", "", "write meshes as JSON to this path; - writes stdout")
	noSave := fs.Bool("dry-run", false, "do not save the edited world")
	refPath := fs.String("reference", "", "also write exact per-layer meshes (3d only) as JSON to this path")
	refCells := fs.Int("reference-cells", 0, "marching cubes cells along a reference mesh's longest axis")
	_ = fs.Parse(args)

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	app, p, err := openAuthority(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	defer app.Close(context.Background())

	var result EvalResult
	if *scriptPath != "" {
		source, err := readSource(*scriptPath)
		if err != nil {
			return err
		}
		result = app.Evaluate(ctx, source)
	} else {
		result = app.Export(ctx)
	}
	for _, w := range result.Warnings {
		logger.Warn(w.Message)
	}
	for _, e := range result.Errors {
		logger.Error(e.Message, zap.Int("line", e.Line))
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d script errors", len(result.Errors))
	}
	logger.Info("world ready",
		zap.Int("meshes", len(result.Meshes)),
		zap.Int("modifications", result.Modifications),
		zap.Int("clearCount", result.ClearCount))

	if *outPath != "" {
		if err := writeJSON(*outPath, result); err != nil {
			return err
		}
	}
	if *refPath != "" {
		ref, err := app.Reference(ctx, *refCells)
		if err != nil {
			return fmt.Errorf("reference: %w", err)
		}
		if err := writeJSON(*refPath, ref); err != nil {
			return err
		}
		logger.Info("reference written", zap.Int("meshes", len(ref)))
	}
	if *noSave {
		return nil
	}
	return p.Save(ctx, app)
}

func serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "world config (yaml)")
	listen := fs.String("listen", "", "listen address; overrides network.listen")
	saveEvery := fs.Duration("save-every", time.Minute, "snapshot interval; 0 saves on shutdown only")
	_ = fs.Parse(args)

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *listen != "" {
		cfg.Network.Listen = *listen
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, p, err := openAuthority(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	defer app.Close(context.Background())

	sender := netsync.NewSender(app.world, cfg.SenderOptions(logger))
	syncSrv := ws.NewServer(sender, cfg.TransportOptions(logger))
	defer syncSrv.Close()

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Network.Path, syncSrv.Handler())
	mux.HandleFunc("/eval", app.evalHandler(logger))
	mux.HandleFunc("/meshes", app.meshesHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Network.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	if *saveEvery > 0 {
		go func() {
			t := time.NewTicker(*saveEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := p.Save(ctx, app); err != nil {
						logger.Warn("periodic save failed", zap.Error(err))
					}
				}
			}
		}()
	}

	logger.Info("listening", zap.String("addr", cfg.Network.Listen), zap.String("sync", cfg.Network.Path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return p.Save(context.Background(), app)
}

func followCmd(args []string) error {
	fs := flag.NewFlagSet("follow", flag.ExitOnError)
	configPath := fs.String("config", "", "world config (yaml); resources must match the authority's")
	url := fs.String("url", "", "authority sync endpoint, e.g. ws://localhost:8080/sync")
	outPath := fs.String("out", "", "write meshes as JSON to this path when the connection ends")
	_ = fs.Parse(args)

	if *url == "" {
		return errors.New("missing -url")
	}
	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	app, err := NewApp(cfg, logger, true)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	recv := netsync.NewReceiver(app.world, cfg.ReceiverOptions(logger))
	client, err := ws.Dial(ctx, *url, recv, cfg.TransportOptions(logger))
	if err != nil {
		return err
	}
	logger.Info("following", zap.String("url", *url))
	runErr := client.Run(ctx)
	logger.Info("connection ended",
		zap.Stringer("peer", recv.Peer()),
		zap.Int("modifications", app.world.ModificationCount()),
		zap.Int("clearCount", app.world.ClearCount()))

	if *outPath != "" {
		result := app.Export(context.Background())
		if err := writeJSON(*outPath, result); err != nil {
			return err
		}
	}
	return runErr
}

func snapshotsCmd(args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	configPath := fs.String("config", "", "world config (yaml)")
	limit := fs.Int("limit", 20, "number of snapshots to list")
	_ = fs.Parse(args)

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfg.Store.Database == "" {
		return errors.New("config has no store.database")
	}
	db, err := store.Open(cfg.Store.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	infos, err := db.Snapshots(context.Background(), *limit)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%d\t%s\tclear=%d\tmods=%d\t%d bytes\n",
			info.ID, info.SavedAt.Format(time.RFC3339), info.ClearCount, info.Count, info.Size)
	}
	return nil
}

// openAuthority builds an authority world and restores its saved log.
func openAuthority(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, *persistence, error) {
	app, err := NewApp(cfg, logger, false)
	if err != nil {
		return nil, nil, err
	}
	p, err := openPersistence(cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Restore(ctx, app); err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return app, p, nil
}

func (a *App) evalHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		source, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result := a.Evaluate(r.Context(), string(source))
		status := http.StatusOK
		if len(result.Errors) > 0 {
			status = http.StatusUnprocessableEntity
			logger.Info("script rejected", zap.Int("errors", len(result.Errors)))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(result)
	}
}

func (a *App) meshesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.Export(r.Context()))
	}
}

func readSource(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

func writeJSON(path string, v any) error {
	if path == "-" {
		return json.NewEncoder(os.Stdout).Encode(v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
