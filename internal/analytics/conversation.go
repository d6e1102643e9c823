package analytics

import (
	"cmp"
	"context"
	"slices"

	"github.com/oshilog/chatview/internal/parser"
)

// Conversation returns every decodable message of one
// tenant/persona pair ordered by timestamp, oldest first. No
// window is applied. Equal timestamps keep canonical key order.
func Conversation(
	ctx context.Context, src Source, tenantID, personaID string,
) ([]parser.Message, error) {
	tree, err := src.FetchConversations(ctx)
	if err != nil {
		return nil, unavailable("fetching conversations", err)
	}
	thread := parser.Child(parser.Child(tree, tenantID), personaID)
	if !parser.IsContainer(thread) {
		return nil, ErrNotFound
	}

	msgs := slices.Collect(parser.ScanConversation(thread, nil))
	if msgs == nil {
		msgs = []parser.Message{}
	}
	slices.SortStableFunc(msgs, func(a, b parser.Message) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return msgs, nil
}
