package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/parser"
)

// Snapshot reads both trees from one exported JSON document.
// The file is re-read on every fetch so edits are picked up
// without a restart.
type Snapshot struct {
	path              string
	data              []byte
	personasRoot      string
	conversationsRoot string
}

// NewSnapshot returns a backend reading the document at path.
func NewSnapshot(path, personasRoot, conversationsRoot string) *Snapshot {
	return &Snapshot{
		path:              path,
		personasRoot:      personasRoot,
		conversationsRoot: conversationsRoot,
	}
}

// SnapshotFromBytes returns a backend over a fixed document.
func SnapshotFromBytes(
	data []byte, personasRoot, conversationsRoot string,
) *Snapshot {
	return &Snapshot{
		data:              data,
		personasRoot:      personasRoot,
		conversationsRoot: conversationsRoot,
	}
}

// Path returns the watched file, or "" for in-memory snapshots.
func (s *Snapshot) Path() string { return s.path }

func (s *Snapshot) load(ctx context.Context) (gjson.Result, error) {
	if err := ctx.Err(); err != nil {
		return gjson.Result{}, err
	}
	data := s.data
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("reading snapshot: %w", err)
		}
		data = b
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf(
			"snapshot %s is not valid JSON", s.path,
		)
	}
	return gjson.ParseBytes(data), nil
}

func (s *Snapshot) root(ctx context.Context, key string) (gjson.Result, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	if !doc.IsObject() {
		return gjson.Result{}, errors.New("snapshot root is not an object")
	}
	if v := parser.Child(doc, key); v.Exists() {
		return v, nil
	}
	return emptyTree, nil
}

// FetchPersonas returns the persona root of the document.
func (s *Snapshot) FetchPersonas(ctx context.Context) (gjson.Result, error) {
	return s.root(ctx, s.personasRoot)
}

// FetchConversations returns the conversation root of the
// document.
func (s *Snapshot) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	return s.root(ctx, s.conversationsRoot)
}

// Close is a no-op.
func (s *Snapshot) Close() error { return nil }
