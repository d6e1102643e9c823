package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/timeutil"
)

const (
	// previewWidth caps the last-message column, in display
	// columns.
	previewWidth = 40
	columnGap    = 2
)

// QueryConfig holds parsed CLI options for the query command.
type QueryConfig struct {
	Request analytics.Request
	JSON    bool
}

func parseQueryFlags(
	args []string,
) (QueryConfig, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	config.RegisterSourceFlags(fs)
	window := fs.String(
		"window", "all",
		"Time window: all, last24h, lastWeek or lastMonth",
	)
	persona := fs.String("persona", "", "Only sessions with this persona id")
	search := fs.String(
		"q", "",
		"Case-insensitive search on persona name and last message",
	)
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return QueryConfig{}, nil, err
	}
	if fs.NArg() > 0 {
		return QueryConfig{}, nil, fmt.Errorf(
			"unexpected arguments: %s", strings.Join(fs.Args(), " "),
		)
	}

	win, err := analytics.ParseWindow(*window)
	if err != nil {
		return QueryConfig{}, nil, err
	}
	return QueryConfig{
		Request: analytics.Request{
			Window:    win,
			PersonaID: strings.TrimSpace(*persona),
			Search:    strings.TrimSpace(*search),
		},
		JSON: *asJSON,
	}, fs, nil
}

func runQuery(args []string) {
	qc, fs, err := parseQueryFlags(args)
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

	res, err := analytics.Query(
		ctx, backend, qc.Request, mustAnalyticsOptions(cfg),
	)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	if err := writeQueryResult(os.Stdout, res, qc.JSON); err != nil {
		log.Fatalf("writing output: %v", err)
	}
}

// writeQueryResult prints res as indented JSON or as a table
// followed by the global stats.
func writeQueryResult(
	w io.Writer, res analytics.Result, asJSON bool,
) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Sessions) == 0 {
		fmt.Fprintln(w, "No conversations in this window.")
	} else {
		rows := [][]string{{
			"TENANT", "PERSONA", "MESSAGES", "LAST ACTIVE", "PII", "LAST MESSAGE",
		}}
		for _, s := range res.Sessions {
			pii := ""
			if s.PIIRisk {
				pii = "yes"
			}
			rows = append(rows, []string{
				s.AnonymizedTenantLabel,
				s.PersonaName,
				strconv.Itoa(s.MessageCount),
				timeutil.FormatEpoch(s.LastMessageTimestamp),
				pii,
				preview(s.LastMessageContent),
			})
		}
		if err := writeTable(w, rows); err != nil {
			return err
		}
	}

	fmt.Fprintf(w,
		"\n%d session(s), %d active tenant(s), %.1f messages/session (window %s)\n",
		res.Stats.TotalSessions,
		res.Stats.DistinctActiveTenants,
		res.Stats.AverageSessionLength,
		res.Request.Window,
	)
	if res.Skipped > 0 {
		fmt.Fprintf(w, "%d malformed record(s) skipped\n", res.Skipped)
	}
	return nil
}

// writeTable pads columns by display width so wide (CJK) text
// lines up. The last column is not padded.
func writeTable(w io.Writer, rows [][]string) error {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]+columnGap))
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

// preview flattens s to one line and truncates it to
// previewWidth display columns.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, previewWidth, "…")
}
