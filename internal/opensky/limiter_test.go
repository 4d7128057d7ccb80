package opensky

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := l.InWindow(); got != 3 {
		t.Errorf("InWindow() = %d, want 3", got)
	}
}

func TestLimiterNeverExceedsWindow(t *testing.T) {
	base := time.Now()
	clock := base
	l := NewLimiter(5, 10*time.Second)
	l.now = func() time.Time { return clock }

	ctx := context.Background()

	// Fill the window, then advance past it and fill again. The in-window
	// count must never exceed the limit at any admission point.
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if got := l.InWindow(); got > 5 {
			t.Fatalf("InWindow() = %d, want <= 5", got)
		}
	}

	clock = base.Add(11 * time.Second)
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire after window: %v", err)
		}
	}
	if got := l.InWindow(); got != 5 {
		t.Errorf("InWindow() = %d, want 5", got)
	}
}

func TestLimiterBlocksThenAdmits(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if waited := time.Since(start); waited < 30*time.Millisecond {
		t.Errorf("second Acquire waited %v, want >= 30ms", waited)
	}
}

func TestLimiterTimedOut(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire = nil, want error")
	}
	if !errors.Is(err, ErrTimedOut) {
		t.Errorf("Acquire error = %v, want ErrTimedOut", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire error = %v, want wrapped DeadlineExceeded", err)
	}
}
