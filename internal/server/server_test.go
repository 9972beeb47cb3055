package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/livebridge/internal/config"
	"github.com/haasonsaas/livebridge/internal/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Singleton.Port = 0
	cfg.Dashboard.Enabled = false
	cfg.Catalog.Dir = t.TempDir()
	return cfg
}

func TestDaemon_CleanExitOnClosedInput(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, "test", slog.New(slog.DiscardHandler), observability.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, strings.NewReader(""), io.Discard)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("daemon did not exit on closed input")
	}
}

func TestDaemon_SingletonConflict(t *testing.T) {
	guard, err := AcquireSingleton(0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer guard.Release()

	cfg := testConfig(t)
	cfg.Singleton.Port = sentinelPort(t, guard)
	d := New(cfg, "test", slog.New(slog.DiscardHandler), observability.Nop())

	start := time.Now()
	err = d.Run(context.Background(), strings.NewReader(""), io.Discard)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Run err = %v, want ErrAlreadyRunning", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("second instance took %v to refuse", elapsed)
	}
}
