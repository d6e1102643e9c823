package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/db"
	"github.com/oshilog/chatview/internal/testtree"
	"github.com/oshilog/chatview/internal/timeutil"
)

type threadSpec struct {
	tenant   string
	persona  string
	msgCount int
	// age of the newest message
	age time.Duration
}

var personas = []struct{ tenant, id, name string }{
	{"tenant-a", "oshi-aoi", "Aoi"},
	{"tenant-a", "oshi-ren", "Ren"},
	{"tenant-b", "oshi-aoi-2", "Aoi"},
	{"tenant-b", "oshi-mio", "Mio"},
	{"tenant-c", "oshi-sora", "Sora"},
}

var specs = []threadSpec{
	{"tenant-a", "oshi-aoi", 4, 2 * time.Hour},
	{"tenant-a", "oshi-ren", 12, 3 * 24 * time.Hour},
	{"tenant-b", "oshi-mio", 30, 20 * 24 * time.Hour},
	{"tenant-b", "oshi-aoi", 2, 10 * time.Minute},
	{"tenant-c", "oshi-sora", 150, 90 * 24 * time.Hour},
	{"tenant-d", "oshi-ghost", 3, time.Hour},
}

var lines = []string{
	"good morning!",
	"how was your day?",
	"I watched the live stream again",
	"thank you for always listening",
	"see you tomorrow",
	"my email is fan@example.com",
	"call me at 090-1234-5678",
	"住所は東京都です",
}

func main() {
	out := flag.String("out", "", "output snapshot path")
	mirror := flag.String("mirror", "", "also import into this sqlite mirror")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr,
			"usage: snapshotfixture -out <path> [-mirror <db>]")
		os.Exit(1)
	}

	now := time.Now()
	tree := build(now)

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}
	if err := os.WriteFile(
		*out, []byte(tree.SnapshotJSON("oshis", "chats")), 0o644,
	); err != nil {
		log.Fatalf("writing snapshot: %v", err)
	}
	for _, s := range specs {
		fmt.Printf("  %s/%s: %d messages\n",
			s.tenant, s.persona, s.msgCount)
	}
	fmt.Printf("Fixture snapshot written to %s\n", *out)

	if *mirror != "" {
		if err := writeMirror(*mirror, tree); err != nil {
			log.Fatalf("writing mirror: %v", err)
		}
		fmt.Printf("Fixture mirror written to %s\n", *mirror)
	}
}

// build lays out the fixture relative to now so every window has
// something in it. A few malformed records are included.
func build(now time.Time) *testtree.Tree {
	tree := testtree.New()
	created := timeutil.Epoch(now.Add(-365 * 24 * time.Hour))
	for _, p := range personas {
		tree.PersonaRaw(p.tenant, p.id, map[string]any{
			"name":      p.name,
			"createdAt": created,
		})
	}

	for _, s := range specs {
		newest := now.Add(-s.age)
		for i := range s.msgCount {
			ts := newest.Add(-time.Duration(s.msgCount-1-i) * 7 * time.Minute)
			tree.MessageRaw(s.tenant, s.persona, fmt.Sprintf("m%04d", i),
				map[string]any{
					"content":      lines[i%len(lines)],
					"timestamp":    timeutil.Epoch(ts),
					"isFromSender": i%2 == 0,
				})
		}
	}

	tree.MessageRaw("tenant-a", "oshi-aoi", "broken-1", "not a record")
	tree.MessageRaw("tenant-a", "oshi-aoi", "broken-2",
		map[string]any{"content": "no timestamp"})
	tree.ThreadRaw("tenant-e", "oshi-aoi", 42)
	return tree
}

func writeMirror(path string, tree *testtree.Tree) error {
	if err := os.Remove(path); err != nil &&
		!errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing existing db: %w", err)
	}
	database, err := db.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()
	_, err = database.ImportTrees(context.Background(),
		gjson.Parse(tree.PersonasJSON()),
		gjson.Parse(tree.ConversationsJSON()),
	)
	return err
}
