package views

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every message update a view produces.
type recorder struct {
	mu      sync.Mutex
	updates []discord.MessageUpdate
	acks    int
	shown   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{shown: make(chan struct{}, 16)}
}

func (r *recorder) show(_ context.Context, msg discord.MessageUpdate) error {
	return r.update(msg)
}

func (r *recorder) update(msg discord.MessageUpdate) error {
	r.mu.Lock()
	r.updates = append(r.updates, msg)
	r.mu.Unlock()
	r.shown <- struct{}{}
	return nil
}

func (r *recorder) ack() error {
	r.mu.Lock()
	r.acks++
	r.mu.Unlock()
	return nil
}

func (r *recorder) last() discord.MessageUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.shown:
	case <-time.After(2 * time.Second):
		t.Fatal("view did not update")
	}
}

// customIDs returns the custom ids of every button in an update.
func customIDs(msg discord.MessageUpdate) []string {
	if msg.Components == nil {
		return nil
	}

	var ids []string
	for _, c := range *msg.Components {
		row, ok := c.(discord.ActionRowComponent)
		if !ok {
			continue
		}
		for _, sub := range row.Components {
			if b, ok := sub.(discord.ButtonComponent); ok {
				ids = append(ids, b.CustomID)
			}
		}
	}
	return ids
}

func TestDeliverAndWait(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	view := r.Open()
	defer view.Close()

	id := view.CustomID("next")
	require.True(t, Owns(id))
	require.True(t, r.Deliver(id, 7, nil, nil))

	click, ok := view.Wait(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "next", click.Action)
	assert.Equal(t, uint64(7), click.UserID)
}

func TestDeliverBusyView(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	view := r.Open()
	defer view.Close()

	require.True(t, r.Deliver(view.CustomID("a"), 1, nil, nil))
	assert.False(t, r.Deliver(view.CustomID("b"), 1, nil, nil))
}

func TestDeliverExpired(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	view := r.Open()
	id := view.CustomID("next")
	view.Close()

	assert.False(t, r.Deliver(id, 1, nil, nil))
	assert.False(t, r.Deliver("starboard:other", 1, nil, nil))
	assert.False(t, r.Deliver("view:missing-action", 1, nil, nil))
	assert.False(t, Owns("starboard:other"))
}

func TestWaitTimeout(t *testing.T) {
	t.Parallel()

	view := NewRegistry().Open()
	defer view.Close()

	_, ok := view.Wait(context.Background(), 10*time.Millisecond)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = view.Wait(ctx, time.Minute)
	assert.False(t, ok)
}

func TestPaginator(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	rec := newRecorder()
	pages := []discord.Embed{{Title: "one"}, {Title: "two"}, {Title: "three"}}

	done := make(chan error, 1)
	go func() {
		done <- r.NewPaginator(pages, 1, 200*time.Millisecond).Run(context.Background(), rec.show)
	}()

	rec.wait(t)
	first := rec.last()
	assert.Equal(t, "one", (*first.Embeds)[0].Title)
	assert.Equal(t, "Page 1/3", (*first.Embeds)[0].Footer.Text)

	ids := customIDs(first)
	require.Len(t, ids, 2)
	prev, next := ids[0], ids[1]

	// Clicks from anyone but the owner are acknowledged and ignored.
	require.True(t, r.Deliver(next, 2, rec.update, rec.ack))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.acks == 1
	}, time.Second, time.Millisecond)

	require.True(t, r.Deliver(prev, 1, rec.update, rec.ack))
	rec.wait(t)
	assert.Equal(t, "three", (*rec.last().Embeds)[0].Title)

	require.True(t, r.Deliver(next, 1, rec.update, rec.ack))
	rec.wait(t)
	assert.Equal(t, "one", (*rec.last().Embeds)[0].Title)

	// The buttons are removed once the view times out.
	rec.wait(t)
	require.NoError(t, <-done)
	assert.Empty(t, customIDs(rec.last()))
	assert.Equal(t, "one", (*rec.last().Embeds)[0].Title)
	assert.False(t, r.Deliver(next, 1, rec.update, rec.ack))
}

func TestPaginatorSinglePage(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	err := NewRegistry().NewPaginator([]discord.Embed{{Title: "only"}}, 1, time.Minute).
		Run(context.Background(), rec.show)
	require.NoError(t, err)

	msg := rec.last()
	assert.Empty(t, customIDs(msg))
	assert.Nil(t, (*msg.Embeds)[0].Footer)
}

func TestPaginatorEmpty(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	require.NoError(t, NewRegistry().NewPaginator(nil, 1, time.Minute).Run(context.Background(), rec.show))
	assert.Equal(t, "Nothing to show.", *rec.last().Content)
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action int
		want   bool
		text   string
	}{
		{name: "confirm", action: 0, want: true, text: "Confirmed."},
		{name: "cancel", action: 1, want: false, text: "Cancelled."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRegistry()
			rec := newRecorder()

			type result struct {
				ok  bool
				err error
			}
			done := make(chan result, 1)
			go func() {
				ok, err := r.Confirm(context.Background(), rec.show, "Delete?", 1, time.Second)
				done <- result{ok, err}
			}()

			rec.wait(t)
			assert.Equal(t, "Delete?", *rec.last().Content)
			ids := customIDs(rec.last())
			require.Len(t, ids, 2)

			require.True(t, r.Deliver(ids[tt.action], 1, rec.update, rec.ack))
			res := <-done
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.ok)
			assert.Equal(t, tt.text, *rec.last().Content)
		})
	}
}

func TestConfirmTimeout(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	ok, err := NewRegistry().Confirm(context.Background(), rec.show, "Delete?", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Timed out.", *rec.last().Content)
}
