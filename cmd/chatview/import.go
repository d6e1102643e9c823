package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/db"
)

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			"Usage: chatview import -snapshot <file>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterSourceFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}
	cfg := mustLoadFromFlags(fs)
	if cfg.Backend == config.BackendSQLite {
		log.Fatalf("import reads from a remote backend; choose one with -backend")
	}

	ctx := context.Background()
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	backend := mustOpenBackend(ctx, cfg)
	defer backend.Close()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening mirror: %v", err)
	}
	defer database.Close()

	if err := importInto(ctx, backend, database, os.Stdout); err != nil {
		log.Fatalf("import: %v", err)
	}
}

// importInto copies both trees of src into the mirror.
func importInto(
	ctx context.Context, src analytics.Source, database *db.DB, out io.Writer,
) error {
	personas, err := src.FetchPersonas(ctx)
	if err != nil {
		return fmt.Errorf("fetching personas: %w", err)
	}
	chats, err := src.FetchConversations(ctx)
	if err != nil {
		return fmt.Errorf("fetching conversations: %w", err)
	}
	stats, err := database.ImportTrees(ctx, personas, chats)
	if err != nil {
		return fmt.Errorf("writing mirror: %w", err)
	}
	fmt.Fprintf(out, "Imported %d persona(s) and %d message(s) into %s\n",
		stats.Personas, stats.Messages, database.Path())
	return nil
}
