package daw

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/haasonsaas/livebridge/internal/observability"
)

// BridgeSender is the deep-API bridge transport as seen by the pipeline.
// Implemented by the m4l client.
type BridgeSender interface {
	// Send issues one OSC request and waits for the correlated response.
	Send(ctx context.Context, commandType string, params map[string]any, timeout time.Duration) (map[string]any, error)
	// SendQueued wraps Send with the busy-retry schedule for commands the
	// bridge is known to queue.
	SendQueued(ctx context.Context, commandType string, params map[string]any, timeout time.Duration) (map[string]any, error)
}

// SendOptions tunes a single pipeline send.
type SendOptions struct {
	// Timeout overrides the per-command deadline when positive.
	Timeout time.Duration
	// Queueable routes a bridge command through the busy-retry helper.
	Queueable bool
}

// Pipeline is the single waypoint between tool handlers and the DAW
// transports. All delay, idempotency, and retry policy lives here; the
// transports only frame and move bytes.
type Pipeline struct {
	tcp     *TCPClient
	bridge  BridgeSender
	rt      *RealtimeSender
	logger  *slog.Logger
	metrics *observability.Metrics

	// tcpMu is the writer mutex: exactly one command on the TCP wire at a
	// time, post-delay included, so responses pair with requests.
	tcpMu sync.Mutex
}

// NewPipeline wires the pipeline to its transports. bridge and rt may be
// nil when the respective channel is disabled.
func NewPipeline(tcp *TCPClient, bridge BridgeSender, rt *RealtimeSender, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		tcp:     tcp,
		bridge:  bridge,
		rt:      rt,
		logger:  logger.With("component", "pipeline"),
		metrics: metrics,
	}
}

// SendCommand sends one command on the TCP channel: classify tier and
// idempotency, serialize on the writer mutex, enforce the deadline, retry
// idempotent commands once after a connection-level failure, then hold
// the transport for the tier's settle delay.
func (p *Pipeline) SendCommand(ctx context.Context, cmd Command, opts SendOptions) (Response, error) {
	if cmd.Type == "" {
		return Response{}, E(KindInvalidInput, "command type is required")
	}
	tier := TierFor(cmd.Type)
	timeout := TimeoutFor(cmd.Type, opts.Timeout)
	tierLabel := strconv.Itoa(int(tier))

	p.tcpMu.Lock()
	defer p.tcpMu.Unlock()

	start := time.Now()
	resp, err := p.tcp.Exchange(ctx, cmd, timeout)
	if err != nil && retryableFailure(err) && IsIdempotent(cmd.Type) {
		p.logger.Warn("retrying idempotent command after transport failure",
			"command", cmd.Type, "error", err)
		if rerr := p.tcp.Reconnect(ctx); rerr == nil {
			resp, err = p.tcp.Exchange(ctx, cmd, timeout)
		}
	}
	p.metrics.DawCommandDuration.WithLabelValues(tierLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.DawCommandCounter.WithLabelValues(tierLabel, "error").Inc()
		p.metrics.ErrorCounter.WithLabelValues("pipeline", string(KindOf(err))).Inc()
		return Response{}, err
	}
	if !resp.OK() {
		p.metrics.DawCommandCounter.WithLabelValues(tierLabel, "error").Inc()
		return resp, E(KindDawReported, "%s", resp.Message)
	}
	p.metrics.DawCommandCounter.WithLabelValues(tierLabel, "success").Inc()

	// Settle delay held under the mutex: the next command cannot start
	// until the DAW has had the tier's post-delay to apply this one.
	if d := tier.PostDelay(); d > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	}
	return resp, nil
}

// SendBridge sends one command over the OSC bridge. The bridge device
// serializes its own long operations; overlap surfaces as BridgeBusy and
// only explicitly queueable commands are retried.
func (p *Pipeline) SendBridge(ctx context.Context, commandType string, params map[string]any, opts SendOptions) (map[string]any, error) {
	if p.bridge == nil {
		return nil, E(KindNotReady, "OSC bridge is not configured")
	}
	var (
		result map[string]any
		err    error
	)
	start := time.Now()
	if opts.Queueable {
		result, err = p.bridge.SendQueued(ctx, commandType, params, opts.Timeout)
	} else {
		result, err = p.bridge.Send(ctx, commandType, params, opts.Timeout)
	}
	if err != nil {
		p.metrics.ErrorCounter.WithLabelValues("bridge", string(KindOf(err))).Inc()
		p.logger.Debug("bridge command failed", "command", commandType,
			"duration", time.Since(start), "error", err)
	}
	return result, err
}

// SendRealtime emits a fire-and-forget datagram on the realtime channel.
func (p *Pipeline) SendRealtime(cmd Command) error {
	if p.rt == nil {
		return E(KindNotReady, "realtime channel is not configured")
	}
	return p.rt.Send(cmd)
}

// retryableFailure reports whether a transport error justifies the single
// idempotent retry: connection loss or a silent deadline.
func retryableFailure(err error) bool {
	switch KindOf(err) {
	case KindDisconnected, KindTimeout:
		return true
	}
	return false
}
