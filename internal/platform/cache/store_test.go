package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "same-key", loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_GetOrLoad_UsesCachedValueAfterFirstLoad(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return "cached", nil
	}

	if _, err := store.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("first GetOrLoad error: %v", err)
	}
	if _, err := store.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("second GetOrLoad error: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_Take_IsSingleUse(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	ctx := context.Background()
	store.Set(ctx, "state", "verifier-abc")

	v, ok := store.Take(ctx, "state")
	if !ok {
		t.Fatal("first Take missed")
	}
	if got, _ := v.(string); got != "verifier-abc" {
		t.Fatalf("unexpected value: %v", v)
	}

	if _, ok := store.Take(ctx, "state"); ok {
		t.Fatal("second Take should miss")
	}
	if _, ok := store.Get(ctx, "state"); ok {
		t.Fatal("Get after Take should miss")
	}
}

func TestStore_ExpiredEntriesMissAndSweep(t *testing.T) {
	t.Parallel()

	store := NewStore(10 * time.Millisecond)
	ctx := context.Background()
	store.Set(ctx, "short-lived", 1)

	time.Sleep(25 * time.Millisecond)

	if _, ok := store.Get(ctx, "short-lived"); ok {
		t.Fatal("expired entry should miss")
	}

	store.Set(ctx, "swept", 2)
	time.Sleep(25 * time.Millisecond)
	store.sweep(time.Now())

	store.mu.RLock()
	_, stillThere := store.entries["swept"]
	store.mu.RUnlock()
	if stillThere {
		t.Fatal("sweep left an expired entry behind")
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
