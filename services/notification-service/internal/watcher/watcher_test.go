package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_CoalescesBurst(t *testing.T) {
	var passes atomic.Int32
	w := New(func(context.Context) { passes.Add(1) }, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	for i := 0; i < 10; i++ {
		w.Request()
	}
	time.Sleep(100 * time.Millisecond)
	if got := passes.Load(); got != 1 {
		t.Fatalf("burst of requests ran %d passes, want 1", got)
	}
	cancel()
	wg.Wait()
}

func TestWatcher_RequestDuringPassRearms(t *testing.T) {
	var passes atomic.Int32
	var w *Watcher
	requested := false
	w = New(func(context.Context) {
		passes.Add(1)
		if !requested {
			requested = true
			w.Request()
			w.Request()
		}
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	w.Request()
	time.Sleep(120 * time.Millisecond)
	if got := passes.Load(); got != 2 {
		t.Fatalf("ran %d passes, want exactly 2 (original + one re-armed)", got)
	}
	cancel()
	wg.Wait()
}

func TestWatcher_PassesNeverOverlap(t *testing.T) {
	var running atomic.Int32
	var overlapped atomic.Bool
	w := New(func(context.Context) {
		if running.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(15 * time.Millisecond)
		running.Add(-1)
	}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			w.Request()
			time.Sleep(5 * time.Millisecond)
		}
	}()
	<-done
	time.Sleep(50 * time.Millisecond)

	if overlapped.Load() {
		t.Fatal("passes overlapped")
	}
	cancel()
	wg.Wait()
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	w := New(func(context.Context) {}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
