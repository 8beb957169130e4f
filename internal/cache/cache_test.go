package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribersShareOneFetch(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	subs := make([]*Subscription, 0, 5)
	for i := 0; i < 5; i++ {
		subs = append(subs, c.Subscribe(ctx, "k", fetcher, Options{}))
	}
	// Let every subscriber goroutine reach the fetch before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)

	waitFor(t, func() bool {
		snap := subs[0].Get()
		return snap.Data == "value"
	})
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetcher called %d times, want 1", got)
	}
	for _, sub := range subs {
		sub.Close()
	}
}

func TestSeedWinsOverStaleFetch(t *testing.T) {
	c := New()
	ctx := context.Background()

	release := make(chan struct{})
	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		<-release
		return "stale", nil
	}, Options{})
	defer sub.Close()

	time.Sleep(10 * time.Millisecond)
	c.Seed("k", "seeded")
	close(release)

	// Give the abandoned fetch time to land; it must be discarded.
	time.Sleep(20 * time.Millisecond)
	if snap := sub.Get(); snap.Data != "seeded" {
		t.Fatalf("data = %v, want seeded", snap.Data)
	}
}

func TestFetchFailureRetainsLastGoodData(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.Seed("k", "good")
	c.Invalidate("k")

	boom := errors.New("backend down")
	data, err := c.Load(ctx, "k", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if data != "good" {
		t.Fatalf("data = %v, want retained value", data)
	}
}

func TestFailedRevalidationKeepsKeyStale(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.Seed("k", "good")
	c.Invalidate("k")

	boom := errors.New("backend down")
	if _, err := c.Load(ctx, "k", func(ctx context.Context) (any, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// The backend is healthy again; the key must still count as stale and
	// refetch rather than serving the old value as fresh.
	var calls int32
	data, err := c.Load(ctx, "k", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("recovery load: %v", err)
	}
	if data != "recovered" {
		t.Fatalf("data = %v, want recovered", data)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetcher called %d times after failed revalidation, want 1", got)
	}
}

func TestLoadReturnsCachedWhenFresh(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	fetcher := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	if _, err := c.Load(ctx, "k", fetcher); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := c.Load(ctx, "k", fetcher); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetcher called %d times, want 1", got)
	}

	c.Invalidate("k")
	if _, err := c.Load(ctx, "k", fetcher); err != nil {
		t.Fatalf("load after invalidate: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("fetcher called %d times after invalidate, want 2", got)
	}
}

func TestInvalidateTriggersRefetchForSubscribers(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, Options{})
	defer sub.Close()

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
	c.Invalidate("k")
	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 2 })
}

func TestPollStopsWhenPredicateTurnsFalse(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	fetcher := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n >= 3 {
			return "done", nil
		}
		return "pending", nil
	}

	sub := c.Subscribe(ctx, "k", fetcher, Options{
		PollInterval: 5 * time.Millisecond,
		PollWhile:    func(last any) bool { return last != "done" },
	})
	defer sub.Close()

	waitFor(t, func() bool { return sub.Get().Data == "done" })
	settled := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != settled {
		t.Fatalf("poll kept fetching after terminal value: %d -> %d", settled, got)
	}
}

func TestCloseCancelsPolling(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, Options{PollInterval: 5 * time.Millisecond})

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) >= 2 })
	sub.Close()
	settled := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != settled {
		t.Fatalf("poll survived Close: %d -> %d", settled, got)
	}
}

func TestResumeForcesRevalidation(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls int32
	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, Options{})
	defer sub.Close()

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })

	sub.Resume(ctx)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("fetcher called %d times after resume, want 2", got)
	}
	if sub.Get().Data != int32(2) {
		t.Fatalf("data = %v, want refreshed value", sub.Get().Data)
	}
}

func TestLateResultDroppedAfterClose(t *testing.T) {
	c := New()
	ctx := context.Background()

	release := make(chan struct{})
	var done sync.WaitGroup
	done.Add(1)
	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		defer done.Done()
		<-release
		return "late", nil
	}, Options{})

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	close(release)
	done.Wait()
	time.Sleep(10 * time.Millisecond)

	data, err := c.Load(ctx, "k", func(ctx context.Context) (any, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data != "fresh" {
		t.Fatalf("data = %v; late result should have been dropped", data)
	}
}

func TestUpdatesDeliverNewestSnapshot(t *testing.T) {
	c := New()
	ctx := context.Background()

	sub := c.Subscribe(ctx, "k", func(ctx context.Context) (any, error) {
		return "fetched", nil
	}, Options{})
	defer sub.Close()

	waitFor(t, func() bool { return sub.Get().Data == "fetched" })

	for i := 0; i < 20; i++ {
		c.Seed("k", i)
	}

	var last Snapshot
	for {
		select {
		case snap := <-sub.Updates():
			last = snap
			continue
		default:
		}
		break
	}
	if last.Data != 19 {
		t.Fatalf("newest snapshot = %v, want 19", last.Data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
