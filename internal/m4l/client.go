// Package m4l implements the request/response client for the in-DAW
// scripting device that terminates the deep-API OSC bridge. Commands go
// out on one UDP port; responses, possibly split into chunk envelopes,
// come back on another and are correlated by request id.
package m4l

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/livebridge/internal/cache"
	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/retry"
)

const (
	defaultTimeout   = 5 * time.Second
	discoveryTimeout = 15 * time.Second
	batchPerParam    = 150 * time.Millisecond
	batchFloor       = 10 * time.Second
	pingTTL          = 5 * time.Second
	staleDrainBudget = 5
	maxDatagram      = 65535
	reconnectPause   = 200 * time.Millisecond
)

// Client owns the two bridge UDP sockets. One request/response cycle
// runs at a time: the exchange mutex keeps correlation on the shared
// receive socket sound. The bridge device serializes its own long
// operations and answers "busy" when asked to overlap them.
type Client struct {
	sendAddr      string
	recvAddr      string
	serverVersion string
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu        sync.Mutex
	sendConn  *net.UDPConn
	recvConn  *net.UDPConn
	connected bool

	pingCache     *cache.TTL[string]
	versionMu     sync.Mutex
	bridgeVersion string
}

// New creates a bridge client for the given send/receive UDP addresses.
// serverVersion is compared against the version the device reports on
// ping. Sockets open lazily on first use.
func New(sendAddr, recvAddr, serverVersion string, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		sendAddr:      sendAddr,
		recvAddr:      recvAddr,
		serverVersion: serverVersion,
		logger:        logger.With("transport", "osc"),
		metrics:       metrics,
		pingCache:     cache.New[string](cache.Options{TTL: pingTTL}),
	}
}

// connectLocked sets up both UDP sockets. The receive port is bound
// exclusively; a second bridge instance fails here.
func (c *Client) connectLocked() error {
	if c.connected {
		return nil
	}
	sendUDP, err := net.ResolveUDPAddr("udp", c.sendAddr)
	if err != nil {
		return daw.Wrap(daw.KindDisconnected, err, "bad bridge send address %s", c.sendAddr)
	}
	recvUDP, err := net.ResolveUDPAddr("udp", c.recvAddr)
	if err != nil {
		return daw.Wrap(daw.KindDisconnected, err, "bad bridge receive address %s", c.recvAddr)
	}
	sendConn, err := net.DialUDP("udp", nil, sendUDP)
	if err != nil {
		return daw.Wrap(daw.KindDisconnected, err, "cannot open bridge send socket")
	}
	recvConn, err := net.ListenUDP("udp", recvUDP)
	if err != nil {
		_ = sendConn.Close()
		return daw.Wrap(daw.KindDisconnected, err, "cannot bind bridge receive port %s (already in use?)", c.recvAddr)
	}
	c.sendConn = sendConn
	c.recvConn = recvConn
	c.connected = true
	c.logger.Info("bridge UDP sockets ready", "send", c.sendAddr, "recv", c.recvAddr)
	return nil
}

func (c *Client) disconnectLocked() {
	if c.sendConn != nil {
		_ = c.sendConn.Close()
		c.sendConn = nil
	}
	if c.recvConn != nil {
		_ = c.recvConn.Close()
		c.recvConn = nil
	}
	c.connected = false
}

// Close releases both sockets.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

// timeoutFor scales the deadline with the declared input size for the
// chunked long-running commands; the caller's explicit timeout wins.
func timeoutFor(commandType string, params map[string]any, explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}
	switch commandType {
	case "batch_set_hidden_params":
		n := 0
		if list, ok := params["parameters"].([]any); ok {
			n = len(list)
		} else if list, ok := params["parameters"].([]map[string]any); ok {
			n = len(list)
		}
		if d := time.Duration(n) * batchPerParam; d > batchFloor {
			return d
		}
		return batchFloor
	case "discover_params", "get_hidden_params":
		return discoveryTimeout
	case "analyze_cross_track":
		waitMS := 500
		if v, ok := asInt(params["wait_ms"]); ok {
			waitMS = v
		}
		d := time.Duration(waitMS)*time.Millisecond + 1500*time.Millisecond
		if d < 3*time.Second {
			d = 3 * time.Second
		}
		return d
	}
	return defaultTimeout
}

// Send issues one command and waits for the correlated response. On a
// send failure or response timeout the sockets are recreated and the
// command is retried once. Returns the decoded result payload; a
// status=error response becomes a BridgeBusy or BridgeReported error.
func (c *Client) Send(ctx context.Context, commandType string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	packet, err := buildPacket(commandType, params, requestID)
	if err != nil {
		return nil, err
	}
	deadline := timeoutFor(commandType, params, timeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}

		// Stale datagrams from an earlier timed-out call must not be
		// mistaken for this response.
		c.drainLocked()

		if _, err := c.sendConn.Write(packet); err != nil {
			c.logger.Warn("bridge send failed", "command", commandType, "attempt", attempt, "error", err)
			lastErr = daw.Wrap(daw.KindDisconnected, err, "cannot send %s to bridge", commandType)
			c.disconnectLocked()
			time.Sleep(reconnectPause)
			continue
		}

		resp, err := c.awaitResponse(ctx, requestID, deadline)
		if err != nil {
			if daw.IsKind(err, daw.KindTimeout) {
				c.logger.Warn("bridge response timeout", "command", commandType, "attempt", attempt)
				c.metrics.BridgeRequestCounter.WithLabelValues("/"+commandType, "timeout").Inc()
				lastErr = err
				c.disconnectLocked()
				time.Sleep(reconnectPause)
				continue
			}
			c.metrics.BridgeRequestCounter.WithLabelValues("/"+commandType, "error").Inc()
			return nil, err
		}
		return c.finish(commandType, resp)
	}
	if lastErr == nil {
		lastErr = daw.E(daw.KindTimeout, "no response from bridge for %s; is the bridge device loaded?", commandType)
	}
	return nil, lastErr
}

// finish converts a decoded response envelope into result-or-error.
func (c *Client) finish(commandType string, resp map[string]any) (map[string]any, error) {
	status, _ := resp["status"].(string)
	if status != "success" {
		message, _ := resp["message"].(string)
		if message == "" {
			message = "unknown bridge error"
		}
		if strings.Contains(strings.ToLower(message), "busy") {
			c.metrics.BridgeRequestCounter.WithLabelValues("/"+commandType, "busy").Inc()
			return nil, daw.E(daw.KindBridgeBusy, "%s", message)
		}
		c.metrics.BridgeRequestCounter.WithLabelValues("/"+commandType, "error").Inc()
		return nil, daw.E(daw.KindBridgeReported, "%s", message)
	}
	c.metrics.BridgeRequestCounter.WithLabelValues("/"+commandType, "success").Inc()

	switch result := resp["result"].(type) {
	case map[string]any:
		return result, nil
	case nil:
		return map[string]any{}, nil
	default:
		return map[string]any{"value": result}, nil
	}
}

// SendQueued wraps Send with the retry schedule for commands the bridge
// queues rather than rejects permanently: three attempts with 0.5s then
// 1.0s pauses on "busy". Any non-busy failure is permanent and returns
// immediately.
func (c *Client) SendQueued(ctx context.Context, commandType string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: time.Second, Factor: 2.0}
	var result map[string]any
	attempt := 0
	res := retry.Do(ctx, cfg, func() error {
		attempt++
		r, err := c.Send(ctx, commandType, params, timeout)
		if err == nil {
			result = r
			return nil
		}
		if !daw.IsKind(err, daw.KindBridgeBusy) {
			return retry.Permanent(err)
		}
		if attempt < cfg.MaxAttempts {
			c.logger.Warn("bridge busy, retrying", "command", commandType,
				"attempt", attempt, "max_attempts", cfg.MaxAttempts)
		}
		return err
	})
	if res.Err == nil {
		return result, nil
	}
	var perm *retry.PermanentError
	if errors.As(res.Err, &perm) {
		return nil, perm.Err
	}
	if !daw.IsKind(res.Err, daw.KindBridgeBusy) {
		// The context expired between attempts.
		return nil, daw.Wrap(daw.KindBridgeBusy, res.Err, "busy retry aborted for %s", commandType)
	}
	var be *daw.Error
	if errors.As(res.Err, &be) {
		return nil, be.WithDetails(map[string]any{"attempts": res.Attempts})
	}
	return nil, res.Err
}

// Ping checks bridge liveness, serving from a short-TTL cache so health
// lookups don't hammer the device. Returns the bridge's declared version.
func (c *Client) Ping(ctx context.Context) (string, error) {
	if version, ok := c.pingCache.Get("ping"); ok {
		return version, nil
	}
	result, err := c.Send(ctx, "ping", nil, 0)
	if err != nil {
		return "", err
	}
	version, _ := result["version"].(string)
	c.recordBridgeVersion(version)
	c.pingCache.Put("ping", version)
	return version, nil
}

// Healthy reports whether the last ping (within TTL) succeeded.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.Ping(ctx)
	return err == nil
}

// BridgeVersion returns the version the device last reported, or "".
func (c *Client) BridgeVersion() string {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	return c.bridgeVersion
}

// recordBridgeVersion stores the reported version and warns when the
// major.minor pair drifts from the server's.
func (c *Client) recordBridgeVersion(version string) {
	if version == "" {
		c.logger.Info("bridge did not report a version (older device?)")
		return
	}
	c.versionMu.Lock()
	c.bridgeVersion = version
	c.versionMu.Unlock()

	if majorMinor(version) != majorMinor(c.serverVersion) {
		c.logger.Warn("bridge/server version mismatch; update both components",
			"server_version", c.serverVersion, "bridge_version", version)
	}
}

func majorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// drainLocked flushes any stale datagrams from the receive socket.
func (c *Client) drainLocked() {
	_ = c.recvConn.SetReadDeadline(time.Now())
	buf := make([]byte, maxDatagram)
	for i := 0; i < 100; i++ {
		if _, _, err := c.recvConn.ReadFromUDP(buf); err != nil {
			break
		}
	}
}

func fmtID(id any) string { return fmt.Sprintf("%v", id) }
