package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New[string]()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case got := <-sub:
		if got != "hello" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestPublishNonBlocking(t *testing.T) {
	b := New[int]()
	b.Subscribe() // never drained
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on slow subscriber")
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	b := New[int]()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Publish(1) // must not panic
}

func TestCloseIdempotent(t *testing.T) {
	b := New[int]()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatalf("channel open after close")
	}
	if sub2 := b.Subscribe(); sub2 == nil {
		t.Fatalf("subscribe after close returned nil")
	} else if _, ok := <-sub2; ok {
		t.Fatalf("post-close subscription not closed")
	}
}
