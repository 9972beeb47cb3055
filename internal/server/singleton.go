package server

import (
	"errors"
	"fmt"
	"net"
)

// ErrAlreadyRunning means another daemon instance holds the sentinel
// port. Two instances would race for the DAW sockets and interleave
// responses, so the second one must exit instead of starting.
var ErrAlreadyRunning = errors.New("another livebridge instance is already running")

// SingletonGuard is an exclusive loopback TCP bind held for the life of
// the process. The OS releases it on any exit path, crash included, so
// there is no lock file to go stale.
type SingletonGuard struct {
	ln net.Listener
}

// AcquireSingleton binds the sentinel port. A bind failure is reported
// as ErrAlreadyRunning; the caller decides quickly, well under a
// second, whether to exit.
func AcquireSingleton(port int) (*SingletonGuard, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("%w (sentinel port %d): %v", ErrAlreadyRunning, port, err)
	}
	return &SingletonGuard{ln: ln}, nil
}

// Addr reports the bound sentinel address.
func (g *SingletonGuard) Addr() string {
	if g == nil || g.ln == nil {
		return ""
	}
	return g.ln.Addr().String()
}

// Release frees the sentinel port. Safe to call more than once.
func (g *SingletonGuard) Release() {
	if g == nil || g.ln == nil {
		return
	}
	_ = g.ln.Close()
	g.ln = nil
}
