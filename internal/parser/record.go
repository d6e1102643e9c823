package parser

import (
	"github.com/tidwall/gjson"
)

// DefaultPersonaName is used when a persona record has no usable
// name.
const DefaultPersonaName = "unnamed"

// Message is one decoded chat record. Timestamp is in epoch
// seconds.
type Message struct {
	Key          string  `json:"key"`
	Content      string  `json:"content"`
	Timestamp    float64 `json:"timestamp"`
	IsFromSender bool    `json:"is_from_sender"`
}

// PersonaRecord is one decoded persona entry together with the
// tenant it was stored under.
type PersonaRecord struct {
	TenantID  string  `json:"tenant_id"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ImageRef  string  `json:"image_ref,omitempty"`
	Note      string  `json:"note,omitempty"`
	CreatedAt float64 `json:"created_at"`
}

// DecodeMessage decodes a single message record. It reports false
// when the record is not an object, content is not a string or
// timestamp is not a number.
func DecodeMessage(key string, r gjson.Result) (Message, bool) {
	if !r.IsObject() {
		return Message{}, false
	}
	content := r.Get("content")
	if content.Type != gjson.String {
		return Message{}, false
	}
	ts := r.Get("timestamp")
	if ts.Type != gjson.Number {
		return Message{}, false
	}

	// Older app builds wrote "isUser".
	from := firstExisting(r, "isFromSender", "isUser")

	return Message{
		Key:          key,
		Content:      content.Str,
		Timestamp:    ts.Num,
		IsFromSender: from.Type == gjson.True,
	}, true
}

// DecodePersona decodes a persona record stored under
// tenantID/personaID. now is used when createdAt is missing or not
// a number. It reports false only when the record is not an
// object.
func DecodePersona(
	tenantID, personaID string, r gjson.Result, now float64,
) (PersonaRecord, bool) {
	if !r.IsObject() {
		return PersonaRecord{}, false
	}

	p := PersonaRecord{
		TenantID:  tenantID,
		ID:        personaID,
		Name:      DefaultPersonaName,
		CreatedAt: now,
	}
	if name := r.Get("name"); name.Type == gjson.String && name.Str != "" {
		p.Name = name.Str
	}
	if img := firstString(r, "imageRef", "imageUrl"); img != "" {
		p.ImageRef = img
	}
	if note := firstString(r, "note", "memo"); note != "" {
		p.Note = note
	}
	if created := r.Get("createdAt"); created.Type == gjson.Number {
		p.CreatedAt = created.Num
	}
	return p, true
}

func firstExisting(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}
