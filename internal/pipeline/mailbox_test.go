package pipeline

import (
	"testing"
	"time"

	"depthview-go/internal/sensor"
	"depthview-go/internal/types"
)

func TestMailboxOverwritesUnconsumed(t *testing.T) {
	m := NewMailbox()
	var feed sensor.Feed
	feed.Push(types.FrameMeta{}, nil)
	a := feed.Push(types.FrameMeta{}, nil)
	b := feed.Push(types.FrameMeta{}, nil)
	c := feed.Push(types.FrameMeta{}, nil)

	m.Offer(a)
	m.Offer(b)
	m.Offer(c)

	got, ok := m.Next()
	if !ok || got != c {
		t.Fatalf("expected newest handle, got %v ok=%v", got, ok)
	}
	if m.Drops() != 2 {
		t.Fatalf("expected 2 drops, got %d", m.Drops())
	}
}

func TestMailboxCloseDeliversPending(t *testing.T) {
	m := NewMailbox()
	var feed sensor.Feed
	h := feed.Push(types.FrameMeta{}, nil)
	m.Offer(h)
	m.Close()
	m.Offer(feed.Push(types.FrameMeta{}, nil))

	if got, ok := m.Next(); !ok || got != h {
		t.Fatalf("expected pending handle after close")
	}
	if _, ok := m.Next(); ok {
		t.Fatalf("expected closed mailbox to report false")
	}
}

func TestMailboxNextBlocksUntilOffer(t *testing.T) {
	m := NewMailbox()
	var feed sensor.Feed
	got := make(chan sensor.Handle, 1)
	go func() {
		h, _ := m.Next()
		got <- h
	}()

	select {
	case <-got:
		t.Fatal("Next returned before Offer")
	case <-time.After(20 * time.Millisecond):
	}

	h := feed.Push(types.FrameMeta{}, nil)
	m.Offer(h)
	select {
	case v := <-got:
		if v != h {
			t.Fatalf("unexpected handle")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake")
	}
}
