package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/db"
	"github.com/oshilog/chatview/internal/server"
	"github.com/oshilog/chatview/internal/store"
	"github.com/oshilog/chatview/internal/sync"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	watcherDebounce = 500 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: %v", err)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "query":
			runQuery(os.Args[2:])
			return
		case "messages":
			runMessages(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("chatview %s (commit %s, built %s)\n",
				version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`chatview %s - admin analytics for persona chat logs

Reads the persona and conversation trees from the app's store,
summarizes conversations per tenant and persona, and flags
messages that may contain personal information.

Usage:
  chatview [flags]              Start the server (default command)
  chatview serve [flags]        Start the server (explicit)
  chatview query [flags]        Print session summaries
  chatview messages [flags]     Print one conversation
  chatview import [flags]       Copy a snapshot into the sqlite mirror
  chatview version              Show version information
  chatview help                 Show this help

Source flags (all commands):
  -backend string     snapshot, rtdb, firestore or sqlite (default "snapshot")
  -snapshot string    Snapshot JSON file (snapshot backend)

Server flags:
  -host string        Host to bind to (default "127.0.0.1")
  -port int           Port to listen on (default 8080)

Query flags:
  -window string      all, last24h, lastWeek or lastMonth (default "all")
  -persona string     Only sessions with this persona id
  -q string           Case-insensitive search on persona name and last message
  -json               Print JSON instead of a table

Messages flags:
  -tenant string      Tenant id (required)
  -persona string     Persona id (required)
  -json               Print JSON instead of text

Environment variables:
  CHATVIEW_DATA_DIR              Data directory (config, mirror)
  CHATVIEW_BACKEND               Store backend
  CHATVIEW_SNAPSHOT              Snapshot file
  CHATVIEW_RTDB_URL              Realtime Database URL
  CHATVIEW_RTDB_AUTH             Realtime Database auth token
  CHATVIEW_FIRESTORE_PROJECT     Firestore project id
  GOOGLE_APPLICATION_CREDENTIALS Firestore service account file
  CHATVIEW_ANON_SECRET           Base64 key for tenant labels

A .env file in the working directory is loaded first.
Data is stored in ~/.chatview/ by default.
`, version)
}

func runServe(args []string) {
	cfg := mustLoadConfig("serve", args, config.RegisterServeFlags)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	backend := mustOpenBackend(ctx, cfg)
	defer backend.Close()

	opts := mustAnalyticsOptions(cfg)
	dash := analytics.NewDashboard(backend, opts)
	refreshDashboard(ctx, dash, cfg, analytics.Request{})

	if cfg.Backend == config.BackendSnapshot {
		stopWatcher := startSnapshotWatcher(ctx, cfg, dash)
		defer stopWatcher()
	}

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srvOpts := []server.Option{
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
		server.WithAnalyticsOptions(opts),
	}
	if d, ok := backend.(*db.DB); ok {
		srvOpts = append(srvOpts, server.WithMirror(d))
	}
	srv := server.New(cfg, backend, dash, srvOpts...)

	fmt.Printf("chatview %s listening at http://%s:%d (%s backend)\n",
		version, cfg.Host, cfg.Port, cfg.Backend)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		sctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

// mustLoadConfig parses args with the flags added by register and
// layers them over the file and environment configuration.
func mustLoadConfig(
	name string, args []string, register func(*flag.FlagSet),
) config.Config {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: chatview %s [flags]\n\nFlags:\n", name)
		fs.PrintDefaults()
	}
	register(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	return mustLoadFromFlags(fs)
}

func mustLoadFromFlags(fs *flag.FlagSet) config.Config {
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func mustOpenBackend(
	ctx context.Context, cfg config.Config,
) store.Backend {
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("opening %s backend: %v", cfg.Backend, err)
	}
	return backend
}

func mustAnalyticsOptions(cfg config.Config) analytics.Options {
	key, err := cfg.AnonKey()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return analytics.Options{Anonymizer: analytics.NewAnonymizer(key)}
}

// refreshDashboard runs one bounded dashboard refresh and logs
// the outcome. The first refresh uses req; later ones rerun the
// last request.
func refreshDashboard(
	ctx context.Context, dash *analytics.Dashboard,
	cfg config.Config, req analytics.Request,
) {
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	var (
		res analytics.Result
		err error
	)
	if dash.Generation() == 0 {
		res, err = dash.Refresh(ctx, req)
	} else {
		res, err = dash.Rerun(ctx)
	}
	switch {
	case errors.Is(err, analytics.ErrStale):
		return
	case err != nil:
		log.Printf("dashboard: %v", err)
	default:
		log.Printf("dashboard: %d session(s) over %d persona(s), state %s",
			len(res.Sessions), dash.Catalog().Len(), res.State)
	}
}

func startSnapshotWatcher(
	ctx context.Context, cfg config.Config, dash *analytics.Dashboard,
) func() {
	onChange := func(_ []string) {
		refreshDashboard(ctx, dash, cfg, analytics.Request{})
	}
	watcher, err := sync.NewWatcher(watcherDebounce, onChange)
	if err != nil {
		log.Printf("warning: file watcher unavailable: %v", err)
		return func() {}
	}
	watcher.Start()
	if err := watcher.WatchFile(cfg.SnapshotPath); err != nil {
		log.Printf("warning: not watching snapshot: %v", err)
	}
	return watcher.Stop
}
