package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/tidwall/gjson"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/oshilog/chatview/internal/timeutil"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// Firestore reads trees from a Firestore project laid out as
// users/{tenant}/{personasRoot}/{persona} with messages under
// .../{persona}/messages/{message}.
type Firestore struct {
	client       *firestore.Client
	personasRoot string
}

// NewFirestore connects to project. An empty credentialsFile
// falls back to application default credentials.
func NewFirestore(
	ctx context.Context, project, credentialsFile, personasRoot string,
) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Firestore{client: client, personasRoot: personasRoot}, nil
}

// tenants lists tenant documents, including ones that exist only
// as parents of subcollections.
func (f *Firestore) tenants(
	ctx context.Context,
) ([]*firestore.DocumentRef, error) {
	it := f.client.Collection(usersCollection).DocumentRefs(ctx)
	var refs []*firestore.DocumentRef
	for {
		ref, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return refs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing tenants: %w", err)
		}
		refs = append(refs, ref)
	}
}

func (f *Firestore) personas(
	ctx context.Context, tenant *firestore.DocumentRef,
) ([]*firestore.DocumentSnapshot, error) {
	docs, err := tenant.Collection(f.personasRoot).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing personas of %s: %w", tenant.ID, err)
	}
	return docs, nil
}

// FetchPersonas builds the tenantId -> personaId tree.
func (f *Firestore) FetchPersonas(ctx context.Context) (gjson.Result, error) {
	tenants, err := f.tenants(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	tree := make(map[string]map[string]any)
	for _, t := range tenants {
		docs, err := f.personas(ctx, t)
		if err != nil {
			return gjson.Result{}, err
		}
		for _, d := range docs {
			if tree[t.ID] == nil {
				tree[t.ID] = make(map[string]any)
			}
			tree[t.ID][d.Ref.ID] = normalize(d.Data())
		}
	}
	return encodeTree(tree)
}

// FetchConversations builds the tenantId -> personaId ->
// messageId tree. Persona documents that only exist as parents
// of a messages subcollection are included.
func (f *Firestore) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	tenants, err := f.tenants(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	tree := make(map[string]map[string]map[string]any)
	for _, t := range tenants {
		it := t.Collection(f.personasRoot).DocumentRefs(ctx)
		for {
			p, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return gjson.Result{}, fmt.Errorf(
					"listing personas of %s: %w", t.ID, err,
				)
			}
			msgs, err := p.Collection(messagesCollection).
				Documents(ctx).GetAll()
			if err != nil {
				return gjson.Result{}, fmt.Errorf(
					"listing messages of %s/%s: %w", t.ID, p.ID, err,
				)
			}
			if len(msgs) == 0 {
				continue
			}
			if tree[t.ID] == nil {
				tree[t.ID] = make(map[string]map[string]any)
			}
			thread := make(map[string]any, len(msgs))
			for _, m := range msgs {
				thread[m.Ref.ID] = normalize(m.Data())
			}
			tree[t.ID][p.ID] = thread
		}
	}
	return encodeTree(tree)
}

// Close closes the client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

// normalize converts Firestore value types into JSON-friendly
// ones. Timestamps become epoch seconds so they decode the same
// way as RTDB numbers.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case float64:
		// JSON has no NaN or infinities.
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return timeutil.Epoch(x)
	case *firestore.DocumentRef:
		if x == nil {
			return nil
		}
		return x.Path
	default:
		return v
	}
}

func encodeTree(v any) (gjson.Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encoding tree: %w", err)
	}
	return gjson.ParseBytes(b), nil
}
