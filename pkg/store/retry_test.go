package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  time.Millisecond,
	maxDelay:   4 * time.Millisecond,
}

func TestIsTransientSQLiteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-transient", errors.New("syntax error"), false},
		{"constraint", errors.New("UNIQUE constraint failed: films.slug"), false},
		{"SQLITE_BUSY text", errors.New("SQLITE_BUSY"), true},
		{"database is locked", errors.New("database is locked"), true},
		{"code 5", errors.New("sqlite: (5) database is busy"), true},
		{"code 522", errors.New("sqlite: (522) short read"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientSQLiteErr(tt.err); got != tt.want {
				t.Errorf("isTransientSQLiteErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryOp(t *testing.T) {
	busy := errors.New("SQLITE_BUSY")
	permanent := errors.New("no such table: films")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantErr   error
		wantCalls int
	}{
		{"succeeds immediately", 0, nil, nil, 1},
		{"recovers from contention", 2, busy, nil, 3},
		{"gives up after retries", 10, busy, busy, 4},
		{"permanent error not retried", 10, permanent, permanent, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryOp(context.Background(), fastRetryConfig, func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryOp_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryOp(ctx, retryConfig{maxRetries: 5, baseDelay: time.Second, maxDelay: time.Second}, func() error {
		calls++
		cancel()
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := retryConfig{maxRetries: 10, baseDelay: 10 * time.Millisecond, maxDelay: 40 * time.Millisecond}
	for attempt := 0; attempt < 8; attempt++ {
		d := backoffDelay(cfg, attempt)
		if d > cfg.maxDelay+cfg.baseDelay {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}
