package analytics

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oshilog/chatview/internal/parser"
	"github.com/oshilog/chatview/internal/timeutil"
)

// UnknownPersonaName labels sessions whose persona id is not in
// the catalog.
const UnknownPersonaName = "unknown persona"

// Catalog is the distinct set of personas across all tenants.
// It is rebuilt from scratch on every load.
type Catalog struct {
	personas []parser.PersonaRecord
	names    map[string]string
}

// BuildCatalog deduplicates records by name, keeping the first
// record seen for each name, and orders the result by name.
// Records should already be in canonical tenant/persona order.
//
// Name resolution by id covers every record, including ones
// dropped as duplicate names.
func BuildCatalog(records []parser.PersonaRecord) *Catalog {
	c := &Catalog{names: make(map[string]string, len(records))}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if _, ok := c.names[r.ID]; !ok {
			c.names[r.ID] = r.Name
		}
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		c.personas = append(c.personas, r)
	}
	slices.SortStableFunc(c.personas, func(a, b parser.PersonaRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
	return c
}

// LoadCatalog fetches the persona tree from src and builds a
// catalog. Records without a createdAt get now. Malformed records
// are skipped.
func LoadCatalog(
	ctx context.Context, src Source, now time.Time,
) (*Catalog, error) {
	tree, err := src.FetchPersonas(ctx)
	if err != nil {
		return nil, unavailable("fetching personas", err)
	}
	records := parser.ScanPersonas(tree, timeutil.Epoch(now), nil)
	return BuildCatalog(records), nil
}

// List returns the personas ordered by name.
func (c *Catalog) List() []parser.PersonaRecord {
	if c == nil {
		return []parser.PersonaRecord{}
	}
	return append([]parser.PersonaRecord{}, c.personas...)
}

// Len returns the number of distinct personas.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.personas)
}

// Name returns the display name for a persona id, or
// UnknownPersonaName.
func (c *Catalog) Name(id string) string {
	if c == nil {
		return UnknownPersonaName
	}
	if name, ok := c.names[id]; ok {
		return name
	}
	return UnknownPersonaName
}
