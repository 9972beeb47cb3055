package daw

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/protocol"
	"github.com/haasonsaas/livebridge/internal/ready"
	"github.com/haasonsaas/livebridge/internal/retry"
)

// Reconnect backoff schedule for the TCP channel.
const (
	reconnectInitialDelay = 250 * time.Millisecond
	reconnectMaxDelay     = 5 * time.Second
	dialTimeout           = 3 * time.Second
)

// TCPClient maintains the single long-lived connection to the DAW
// scripting endpoint. It owns the socket exclusively. Exchange is not
// safe for concurrent use: the pipeline serializes callers through its
// writer mutex so only one command is ever on the wire.
type TCPClient struct {
	addr    string
	logger  *slog.Logger
	metrics *observability.Metrics
	signals *ready.Signals

	conn     net.Conn
	reader   *protocol.LineReader
	failures int // consecutive failed dials, drives backoff
}

// NewTCPClient creates a client for the DAW command endpoint. No
// connection is made until the first Connect or Exchange.
func NewTCPClient(addr string, logger *slog.Logger, metrics *observability.Metrics, signals *ready.Signals) *TCPClient {
	return &TCPClient{
		addr:    addr,
		logger:  logger.With("transport", "tcp", "addr", addr),
		metrics: metrics,
		signals: signals,
	}
}

// Connected reports whether a socket is currently open.
func (c *TCPClient) Connected() bool { return c.conn != nil }

// Connect dials the DAW endpoint. The first success sets the
// daw-connected readiness event; later reconnections never clear it.
func (c *TCPClient) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.failures++
		c.metrics.ReconnectCounter.WithLabelValues("tcp", "error").Inc()
		return Wrap(KindDisconnected, err, "cannot reach DAW at %s", c.addr)
	}
	c.conn = conn
	c.reader = protocol.NewLineReader(conn)
	c.failures = 0
	c.metrics.ReconnectCounter.WithLabelValues("tcp", "success").Inc()
	c.signals.DawConnected.Set()
	c.logger.Info("daw session established")
	return nil
}

// Reconnect closes the socket, sleeps the capped exponential backoff for
// the current failure streak, and dials again.
func (c *TCPClient) Reconnect(ctx context.Context) error {
	c.Close()
	delay := retry.Backoff(c.failures+1, reconnectInitialDelay, reconnectMaxDelay, 2.0)
	select {
	case <-ctx.Done():
		return Wrap(KindDisconnected, ctx.Err(), "reconnect aborted")
	case <-time.After(delay):
	}
	return c.Connect(ctx)
}

// Close tears down the socket. Safe to call when already closed.
func (c *TCPClient) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// Exchange writes one command and reads exactly one response within the
// deadline. Any failure closes the socket so the next caller starts from
// a clean connection with a drained read buffer.
func (c *TCPClient) Exchange(ctx context.Context, cmd Command, timeout time.Duration) (Response, error) {
	if err := c.Connect(ctx); err != nil {
		return Response{}, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	line, err := protocol.EncodeLine(cmd)
	if err != nil {
		// Encoding failed before any bytes hit the wire; keep the socket.
		return Response{}, Wrap(KindProtocolError, err, "cannot frame %s", cmd.Type)
	}

	if _, err := c.conn.Write(line); err != nil {
		c.Close()
		return Response{}, c.classify(err, cmd.Type, "write")
	}

	var resp Response
	if err := c.reader.ReadObject(&resp); err != nil {
		if errors.Is(err, protocol.ErrLineTooLong) {
			// Oversized frame was drained; connection remains usable.
			return Response{}, Wrap(KindProtocolError, err, "oversized response to %s", cmd.Type)
		}
		c.Close()
		return Response{}, c.classify(err, cmd.Type, "read")
	}
	return resp, nil
}

// classify maps transport errors onto the closed taxonomy.
func (c *TCPClient) classify(err error, commandType, op string) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		c.logger.Warn("daw command timed out", "command", commandType, "op", op)
		return Wrap(KindTimeout, err, "no response to %s within deadline", commandType)
	}
	if errors.Is(err, protocol.ErrMalformedFrame) {
		return Wrap(KindProtocolError, err, "unparseable response to %s", commandType)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		c.logger.Warn("daw connection lost", "command", commandType, "op", op)
		return Wrap(KindDisconnected, err, "DAW connection lost during %s", commandType)
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	// Remaining syscall-level failures (reset, broken pipe) are
	// connection losses.
	c.logger.Warn("daw transport error", "command", commandType, "op", op, "error", err)
	return Wrap(KindDisconnected, err, "transport failure during %s", commandType)
}
