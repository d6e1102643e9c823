// Package store opens the remote persona and conversation trees
// behind a single Backend interface. Every backend returns the
// raw nested trees; decoding belongs to the parser.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/db"
)

// ErrUnknownBackend is returned by Open for an unrecognized
// backend name.
var ErrUnknownBackend = errors.New("unknown backend")

// Backend is an analytics source that holds resources.
type Backend interface {
	FetchPersonas(ctx context.Context) (gjson.Result, error)
	FetchConversations(ctx context.Context) (gjson.Result, error)
	Close() error
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSnapshot:
		return NewSnapshot(
			cfg.SnapshotPath, cfg.PersonasRoot, cfg.ConversationsRoot,
		), nil
	case config.BackendRTDB:
		return NewRTDB(RTDBOptions{
			BaseURL:           cfg.RTDBURL,
			Auth:              cfg.RTDBAuth,
			PersonasRoot:      cfg.PersonasRoot,
			ConversationsRoot: cfg.ConversationsRoot,
			Timeout:           cfg.FetchTimeout,
		}), nil
	case config.BackendFirestore:
		return NewFirestore(
			ctx, cfg.FirestoreProject, cfg.FirestoreCredentials,
			cfg.PersonasRoot,
		)
	case config.BackendSQLite:
		d, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening mirror: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// emptyTree is what a missing root decodes to.
var emptyTree = gjson.Parse("{}")
