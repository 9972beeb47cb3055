package server

import (
	"errors"
	"net"
	"strconv"
	"testing"
)

func sentinelPort(t *testing.T, g *SingletonGuard) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(g.Addr())
	if err != nil {
		t.Fatalf("guard addr %q: %v", g.Addr(), err)
	}
	port, _ := strconv.Atoi(portStr)
	return port
}

func TestSingleton_SecondInstanceRejected(t *testing.T) {
	first, err := AcquireSingleton(0)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	port := sentinelPort(t, first)
	if _, err := AcquireSingleton(port); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second acquire err = %v, want ErrAlreadyRunning", err)
	}
}

func TestSingleton_ReleaseFreesPort(t *testing.T) {
	first, err := AcquireSingleton(0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	port := sentinelPort(t, first)
	first.Release()

	second, err := AcquireSingleton(port)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	second.Release()

	// Double release is harmless.
	second.Release()
	first.Release()
}
