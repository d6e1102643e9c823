package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats holds mirror row counts and the last import time.
type Stats struct {
	TenantCount  int    `json:"tenant_count"`
	PersonaCount int    `json:"persona_count"`
	MessageCount int    `json:"message_count"`
	LastImportAt string `json:"last_import_at,omitempty"`
}

// GetStats returns counts over the mirror tables.
func (db *DB) GetStats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM (
				SELECT tenant_id FROM personas
				UNION SELECT tenant_id FROM messages)),
			(SELECT COUNT(*) FROM personas),
			(SELECT COUNT(*) FROM messages),
			(SELECT imported_at FROM imports
				ORDER BY id DESC LIMIT 1)`

	var (
		s    Stats
		last sql.NullString
	)
	err := db.reader.QueryRowContext(ctx, query).Scan(
		&s.TenantCount,
		&s.PersonaCount,
		&s.MessageCount,
		&last,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	s.LastImportAt = last.String
	return s, nil
}
