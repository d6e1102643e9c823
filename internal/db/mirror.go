package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/parser"
	"github.com/oshilog/chatview/internal/timeutil"
)

// ImportStats counts rows written by ImportTrees.
type ImportStats struct {
	Personas int `json:"personas"`
	Messages int `json:"messages"`
}

// ImportTrees replaces the mirror contents with the given persona
// (tenantId -> personaId -> fields) and conversation
// (tenantId -> personaId -> messageKey -> fields) trees. Nodes
// that cannot hold children at the tenant or thread level are
// dropped; individual records are stored as-is.
func (db *DB) ImportTrees(
	ctx context.Context, personas, conversations gjson.Result,
) (ImportStats, error) {
	var stats ImportStats
	err := db.Update(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"personas", "messages"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM " + table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		pStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO personas (tenant_id, persona_id, raw)
			 VALUES (?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("preparing persona insert: %w", err)
		}
		defer pStmt.Close()

		for _, tenant := range parser.Children(personas) {
			for _, p := range parser.Children(tenant.Value) {
				if _, err := pStmt.ExecContext(ctx,
					tenant.Key, p.Key, p.Value.Raw,
				); err != nil {
					return fmt.Errorf(
						"inserting persona %s/%s: %w",
						tenant.Key, p.Key, err,
					)
				}
				stats.Personas++
			}
		}

		mStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO messages
			 (tenant_id, persona_id, message_key, raw)
			 VALUES (?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("preparing message insert: %w", err)
		}
		defer mStmt.Close()

		for _, tenant := range parser.Children(conversations) {
			for _, thread := range parser.Children(tenant.Value) {
				for _, m := range parser.Children(thread.Value) {
					if _, err := mStmt.ExecContext(ctx,
						tenant.Key, thread.Key, m.Key, m.Value.Raw,
					); err != nil {
						return fmt.Errorf(
							"inserting message %s/%s/%s: %w",
							tenant.Key, thread.Key, m.Key, err,
						)
					}
					stats.Messages++
				}
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO imports (imported_at, personas, messages)
			 VALUES (?, ?, ?)`,
			timeutil.Format(time.Now()), stats.Personas, stats.Messages,
		)
		return err
	})
	if err != nil {
		return ImportStats{}, err
	}
	return stats, nil
}

// FetchPersonas rebuilds the tenantId -> personaId tree.
func (db *DB) FetchPersonas(ctx context.Context) (gjson.Result, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT tenant_id, persona_id, raw FROM personas`)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("querying personas: %w", err)
	}
	defer rows.Close()

	tree := make(map[string]map[string]json.RawMessage)
	for rows.Next() {
		var tenant, persona, raw string
		if err := rows.Scan(&tenant, &persona, &raw); err != nil {
			return gjson.Result{}, fmt.Errorf("scanning persona: %w", err)
		}
		if tree[tenant] == nil {
			tree[tenant] = make(map[string]json.RawMessage)
		}
		tree[tenant][persona] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return gjson.Result{}, fmt.Errorf("iterating personas: %w", err)
	}
	return toTree(tree)
}

// FetchConversations rebuilds the
// tenantId -> personaId -> messageKey tree.
func (db *DB) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT tenant_id, persona_id, message_key, raw FROM messages`)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	tree := make(map[string]map[string]map[string]json.RawMessage)
	for rows.Next() {
		var tenant, persona, key, raw string
		if err := rows.Scan(&tenant, &persona, &key, &raw); err != nil {
			return gjson.Result{}, fmt.Errorf("scanning message: %w", err)
		}
		if tree[tenant] == nil {
			tree[tenant] = make(map[string]map[string]json.RawMessage)
		}
		if tree[tenant][persona] == nil {
			tree[tenant][persona] = make(map[string]json.RawMessage)
		}
		tree[tenant][persona][key] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return gjson.Result{}, fmt.Errorf("iterating messages: %w", err)
	}
	return toTree(tree)
}

func toTree(v any) (gjson.Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encoding tree: %w", err)
	}
	return gjson.ParseBytes(b), nil
}
