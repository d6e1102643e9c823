package parser

import (
	"iter"

	"github.com/tidwall/gjson"
)

// ScanStats counts records seen and dropped while scanning.
type ScanStats struct {
	Decoded int
	Skipped int
}

func (s *ScanStats) record(ok bool) {
	if s == nil {
		return
	}
	if ok {
		s.Decoded++
	} else {
		s.Skipped++
	}
}

// ScanConversation yields the decodable messages of one
// tenant/persona message collection in canonical key order.
// Malformed records are skipped and counted in stats, which may be
// nil. Results are not sorted by timestamp.
func ScanConversation(
	tree gjson.Result, stats *ScanStats,
) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, n := range Children(tree) {
			m, ok := DecodeMessage(n.Key, n.Value)
			stats.record(ok)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// ScanPersonas flattens a tenantId -> personaId -> fields tree
// into persona records, tenants and personas in canonical order.
func ScanPersonas(
	tree gjson.Result, now float64, stats *ScanStats,
) []PersonaRecord {
	var out []PersonaRecord
	for _, tenant := range Children(tree) {
		for _, n := range Children(tenant.Value) {
			p, ok := DecodePersona(tenant.Key, n.Key, n.Value, now)
			stats.record(ok)
			if ok {
				out = append(out, p)
			}
		}
	}
	return out
}
