package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio.dev/internal/audit"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	require.Equal(t, 2, h.Subscribers())

	h.Publish(audit.Entry{ID: 7, Action: audit.ActionContentCreated})
	for _, ch := range []<-chan audit.Entry{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, int64(7), e.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive entry")
		}
	}

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-a
	assert.False(t, open, "channel is closed after cancel")
}

func TestSlowSubscriberMissesEntries(t *testing.T) {
	h := New(WithBuffer(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Subscribe(ctx)

	for i := 1; i <= 10; i++ {
		h.Publish(audit.Entry{ID: int64(i)})
	}
	require.Len(t, ch, 4)
	first := <-ch
	assert.Equal(t, int64(1), first.ID, "the oldest buffered entries are kept")
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := New()
	h.Publish(audit.Entry{ID: 1})
	assert.Zero(t, h.Subscribers())
}
