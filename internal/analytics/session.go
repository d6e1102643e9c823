package analytics

import (
	"iter"

	"github.com/oshilog/chatview/internal/parser"
)

// SessionSummary describes one tenant/persona conversation within
// a window.
type SessionSummary struct {
	ID                    string  `json:"id"`
	TenantID              string  `json:"tenant_id"`
	PersonaID             string  `json:"persona_id"`
	PersonaName           string  `json:"persona_name"`
	MessageCount          int     `json:"message_count"`
	LastMessageContent    string  `json:"last_message_content"`
	LastMessageTimestamp  float64 `json:"last_message_timestamp"`
	AnonymizedTenantLabel string  `json:"anonymized_tenant_label"`
	PIIRisk               bool    `json:"pii_risk"`
}

// SessionID returns the summary id for a tenant/persona pair.
func SessionID(tenantID, personaID string) string {
	return tenantID + "_" + personaID
}

// Summarize builds the summary for one conversation from messages
// with timestamp >= cutoff. It reports false when no message is in
// the window. When several messages share the latest timestamp,
// the last one in scan order wins.
func Summarize(
	tenantID, personaID string,
	msgs iter.Seq[parser.Message],
	cutoff float64,
	catalog *Catalog,
	anon *Anonymizer,
) (SessionSummary, bool) {
	var (
		kept []parser.Message
		last parser.Message
	)
	for m := range msgs {
		if m.Timestamp < cutoff {
			continue
		}
		if len(kept) == 0 || m.Timestamp >= last.Timestamp {
			last = m
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return SessionSummary{}, false
	}

	return SessionSummary{
		ID:                    SessionID(tenantID, personaID),
		TenantID:              tenantID,
		PersonaID:             personaID,
		PersonaName:           catalog.Name(personaID),
		MessageCount:          len(kept),
		LastMessageContent:    last.Content,
		LastMessageTimestamp:  last.Timestamp,
		AnonymizedTenantLabel: anon.Label(tenantID),
		PIIRisk:               DetectPII(kept),
	}, true
}
