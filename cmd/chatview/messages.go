package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/parser"
	"github.com/oshilog/chatview/internal/timeutil"
)

// MessagesConfig holds parsed CLI options for the messages
// command.
type MessagesConfig struct {
	TenantID  string
	PersonaID string
	JSON      bool
}

func parseMessagesFlags(
	args []string,
) (MessagesConfig, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("messages", flag.ContinueOnError)
	config.RegisterSourceFlags(fs)
	tenant := fs.String("tenant", "", "Tenant id (required)")
	persona := fs.String("persona", "", "Persona id (required)")
	asJSON := fs.Bool("json", false, "Print JSON instead of text")

	if err := fs.Parse(args); err != nil {
		return MessagesConfig{}, nil, err
	}
	if *tenant == "" || *persona == "" {
		return MessagesConfig{}, nil, errors.New(
			"both -tenant and -persona are required",
		)
	}
	return MessagesConfig{
		TenantID:  *tenant,
		PersonaID: *persona,
		JSON:      *asJSON,
	}, fs, nil
}

func runMessages(args []string) {
	mc, fs, err := parseMessagesFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := mustLoadFromFlags(fs)

	ctx := context.Background()
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}
	backend := mustOpenBackend(ctx, cfg)
	defer backend.Close()

	msgs, err := analytics.Conversation(
		ctx, backend, mc.TenantID, mc.PersonaID,
	)
	if err != nil {
		log.Fatalf("messages: %v", err)
	}
	if err := writeMessages(os.Stdout, msgs, mc.JSON); err != nil {
		log.Fatalf("writing output: %v", err)
	}
}

// writeMessages prints msgs oldest first, marking the sender side.
func writeMessages(
	w io.Writer, msgs []parser.Message, asJSON bool,
) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	for _, m := range msgs {
		who := "persona"
		if m.IsFromSender {
			who = "user"
		}
		mark := ""
		if analytics.ContainsPII(m.Content) {
			mark = " [pii]"
		}
		if _, err := fmt.Fprintf(w, "%s  %-7s %s%s\n",
			timeutil.FormatEpoch(m.Timestamp), who, m.Content, mark,
		); err != nil {
			return err
		}
	}
	return nil
}
