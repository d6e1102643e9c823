// Package testtree provides shared builders for nested store
// fixtures. Used by the analytics, store, db and server test
// packages.
package testtree

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// Tree accumulates persona and conversation records.
type Tree struct {
	personas map[string]map[string]any
	chats    map[string]map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		personas: make(map[string]map[string]any),
		chats:    make(map[string]map[string]any),
	}
}

// Persona adds a persona with only a name.
func (t *Tree) Persona(tenant, id, name string) *Tree {
	return t.PersonaRaw(tenant, id, map[string]any{"name": name})
}

// PersonaRaw stores v as the persona record under tenant/id.
func (t *Tree) PersonaRaw(tenant, id string, v any) *Tree {
	if t.personas[tenant] == nil {
		t.personas[tenant] = make(map[string]any)
	}
	t.personas[tenant][id] = v
	return t
}

// Message adds a well-formed message from the tenant.
func (t *Tree) Message(
	tenant, persona, key, content string, ts float64,
) *Tree {
	return t.MessageRaw(tenant, persona, key, map[string]any{
		"content":      content,
		"timestamp":    ts,
		"isFromSender": true,
	})
}

// MessageRaw stores v as the message record under
// tenant/persona/key.
func (t *Tree) MessageRaw(tenant, persona, key string, v any) *Tree {
	if t.chats[tenant] == nil {
		t.chats[tenant] = make(map[string]any)
	}
	thread, ok := t.chats[tenant][persona].(map[string]any)
	if !ok {
		thread = make(map[string]any)
		t.chats[tenant][persona] = thread
	}
	thread[key] = v
	return t
}

// ThreadRaw replaces the whole message collection of a
// tenant/persona pair with v.
func (t *Tree) ThreadRaw(tenant, persona string, v any) *Tree {
	if t.chats[tenant] == nil {
		t.chats[tenant] = make(map[string]any)
	}
	t.chats[tenant][persona] = v
	return t
}

// PersonasJSON returns the tenantId -> personaId tree.
func (t *Tree) PersonasJSON() string {
	return mustMarshal(t.personas)
}

// ConversationsJSON returns the tenantId -> personaId -> message
// tree.
func (t *Tree) ConversationsJSON() string {
	return mustMarshal(t.chats)
}

// SnapshotJSON returns a single document holding both roots.
func (t *Tree) SnapshotJSON(personasRoot, chatsRoot string) string {
	return mustMarshal(map[string]any{
		personasRoot: t.personas,
		chatsRoot:    t.chats,
	})
}

// Source returns a fixed in-memory source for the tree.
func (t *Tree) Source() *Source {
	return &Source{
		Personas:      gjson.Parse(t.PersonasJSON()),
		Conversations: gjson.Parse(t.ConversationsJSON()),
	}
}

// Source serves fixed trees and counts fetches. Setting an error
// field makes the corresponding fetch fail.
type Source struct {
	Personas         gjson.Result
	Conversations    gjson.Result
	PersonasErr      error
	ConversationsErr error

	PersonaFetches      atomic.Int64
	ConversationFetches atomic.Int64
}

// FetchPersonas returns s.Personas or s.PersonasErr.
func (s *Source) FetchPersonas(
	ctx context.Context,
) (gjson.Result, error) {
	s.PersonaFetches.Add(1)
	if err := ctx.Err(); err != nil {
		return gjson.Result{}, err
	}
	if s.PersonasErr != nil {
		return gjson.Result{}, s.PersonasErr
	}
	return s.Personas, nil
}

// FetchConversations returns s.Conversations or
// s.ConversationsErr.
func (s *Source) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	s.ConversationFetches.Add(1)
	if err := ctx.Err(); err != nil {
		return gjson.Result{}, err
	}
	if s.ConversationsErr != nil {
		return gjson.Result{}, s.ConversationsErr
	}
	return s.Conversations, nil
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
