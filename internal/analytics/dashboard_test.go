package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/testtree"
)

// blockingSource holds the first conversation fetch until
// release is closed.
type blockingSource struct {
	*testtree.Source
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
	}
	return b.Source.FetchConversations(ctx)
}

func dashboardFixture() *testtree.Source {
	return testtree.New().
		Persona("u1", "p1", "Aiko").
		Persona("u1", "p2", "Ren").
		Message("u1", "p1", "m1", "hello", 10).
		Message("u1", "p2", "m1", "yo", 20).
		Source()
}

func TestDashboard_InitialState(t *testing.T) {
	d := NewDashboard(dashboardFixture(), fixedNow(100))
	cur := d.Current()
	assert.Equal(t, StateLoading, cur.State)
	assert.Empty(t, cur.Sessions)
	assert.Nil(t, d.Catalog())
}

func TestDashboard_Refresh(t *testing.T) {
	d := NewDashboard(dashboardFixture(), fixedNow(100))

	res, err := d.Refresh(context.Background(), Request{PersonaID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "Ren", res.Sessions[0].PersonaName)

	assert.Equal(t, res, d.Current())
	assert.Equal(t, 2, d.Catalog().Len())
}

func TestDashboard_StaleResultDiscarded(t *testing.T) {
	src := &blockingSource{
		Source:  dashboardFixture(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	d := NewDashboard(src, fixedNow(100))

	type outcome struct {
		res Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := d.Refresh(context.Background(), Request{PersonaID: "p1"})
		first <- outcome{res, err}
	}()
	<-src.entered

	second, err := d.Refresh(context.Background(), Request{PersonaID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)

	close(src.release)
	late := <-first
	assert.True(t, errors.Is(late.err, ErrStale))

	cur := d.Current()
	assert.Equal(t, uint64(2), cur.Generation)
	assert.Equal(t, "p2", cur.Request.PersonaID)
}

func TestDashboard_Unavailable(t *testing.T) {
	src := dashboardFixture()
	d := NewDashboard(src, fixedNow(100))
	_, err := d.Refresh(context.Background(), Request{})
	require.NoError(t, err)

	src.ConversationsErr = errors.New("timeout")
	_, err = d.Refresh(context.Background(), Request{Window: WindowLast24h})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	cur := d.Current()
	assert.Equal(t, StateUnavailable, cur.State)
	assert.Contains(t, cur.Error, "timeout")
	assert.Equal(t, uint64(2), cur.Generation)
	assert.Empty(t, cur.Sessions)
}

func TestDashboard_Rerun(t *testing.T) {
	src := dashboardFixture()
	d := NewDashboard(src, fixedNow(100))
	_, err := d.Refresh(context.Background(), Request{PersonaID: "p1"})
	require.NoError(t, err)

	res, err := d.Rerun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Request.PersonaID)
	assert.Equal(t, uint64(2), d.Generation())
	assert.Equal(t, int64(2), src.ConversationFetches.Load())
	assert.Equal(t, int64(2), src.PersonaFetches.Load())
}
