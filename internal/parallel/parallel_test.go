package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForEach_WritesEverySlot(t *testing.T) {
	out := make([]int, 1000)
	err := ForEach(context.Background(), len(out), 4, func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("slot %d = %d, want %d", i, v, i*i)
		}
	}
}

func TestForEach_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 50, 2, func(_ context.Context, i int) error {
		if i == 10 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := ForEach(ctx, 100, 0, func(_ context.Context, i int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no calls after cancellation, got %d", calls.Load())
	}
}

func TestForEach_Empty(t *testing.T) {
	if err := ForEach(context.Background(), 0, 0, nil); err != nil {
		t.Errorf("expected nil for empty input, got %v", err)
	}
}
