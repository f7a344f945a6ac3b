package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// uiState is only touched from loop callbacks; run with -race to catch a stray writer.
func TestGo_CompletesOnLoop(t *testing.T) {
	loop := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run(ctx) }()

	var uiState []int
	finished := make(chan struct{})
	for i := 1; i <= 3; i++ {
		n := i
		Go(ctx, loop, func(context.Context) (int, error) {
			return n * 10, nil
		}, func(v int, err error) {
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			uiState = append(uiState, v)
			if len(uiState) == 3 {
				close(finished)
			}
		})
	}

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("completions did not reach the loop")
	}

	sum := 0
	done := make(chan struct{})
	loop.Post(func() {
		for _, v := range uiState {
			sum += v
		}
		close(done)
	})
	<-done
	if sum != 60 {
		t.Errorf("sum = %d, want 60", sum)
	}

	loop.Stop()
	if err := <-runDone; !errors.Is(err, ErrStopped) {
		t.Errorf("Run() = %v, want ErrStopped", err)
	}
}

func TestGo_PropagatesError(t *testing.T) {
	loop := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	wantErr := errors.New("boom")
	got := make(chan error, 1)
	Go(ctx, loop, func(context.Context) (string, error) {
		return "", wantErr
	}, func(_ string, err error) {
		got <- err
	})

	select {
	case err := <-got:
		if !errors.Is(err, wantErr) {
			t.Errorf("done got %v, want %v", err, wantErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	loop := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestPost_AfterStop(t *testing.T) {
	loop := New(1)
	loop.Stop()
	loop.Stop()
	if loop.Post(func() {}) {
		t.Error("Post() after Stop = true, want false")
	}
}

func TestRun_SurvivesPanic(t *testing.T) {
	loop := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var ran atomic.Bool
	done := make(chan struct{})
	loop.Post(func() { panic("bad callback") })
	loop.Post(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop stopped after panic")
	}
	if !ran.Load() {
		t.Error("second callback did not run")
	}
}
