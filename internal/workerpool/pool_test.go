package workerpool

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolExecutesTasks(t *testing.T) {
	pool := New(4, 16, slog.Default())

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
		if !ok {
			t.Fatal("submit rejected on running pool")
		}
	}

	wg.Wait()
	pool.Shutdown()

	if got := atomic.LoadInt64(&counter); got != 20 {
		t.Fatalf("expected 20 executed tasks, got %d", got)
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := New(1, 4, slog.Default())
	defer pool.Shutdown()

	done := make(chan struct{})
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestPoolTrySubmitAfterShutdown(t *testing.T) {
	pool := New(1, 1, slog.Default())
	pool.Shutdown()

	if pool.TrySubmit(func() {}) {
		t.Error("TrySubmit should fail after shutdown")
	}
	if pool.Submit(func() {}) {
		t.Error("Submit should fail after shutdown")
	}
}
