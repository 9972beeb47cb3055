package m4l

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/protocol"
)

// awaitResponse reads datagrams until one decodes to a response carrying
// the expected request id. A first packet that turns out to be a chunk
// envelope switches into reassembly. Responses with a foreign id are
// late arrivals from an earlier timed-out call and are discarded, up to
// a small drain budget.
func (c *Client) awaitResponse(ctx context.Context, requestID string, timeout time.Duration) (map[string]any, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for drains := 0; drains <= staleDrainBudget; drains++ {
		resp, err := c.readDecoded(deadline)
		if err != nil {
			return nil, err
		}
		if protocol.IsChunk(resp) {
			resp, err = c.reassemble(resp)
			if err != nil {
				return nil, err
			}
		}
		id := ""
		if raw, ok := resp["id"]; ok {
			id = fmtID(raw)
		}
		if id == "" || id == requestID {
			return resp, nil
		}
		c.logger.Warn("bridge response id mismatch, draining",
			"expected", requestID, "got", id)
	}
	return nil, daw.E(daw.KindProtocolError,
		"no response matching request %s after %d stale drains", requestID, staleDrainBudget)
}

// readDecoded reads one datagram and decodes its payload.
func (c *Client) readDecoded(deadline time.Time) (map[string]any, error) {
	_ = c.recvConn.SetReadDeadline(deadline)
	buf := make([]byte, maxDatagram)
	n, _, err := c.recvConn.ReadFromUDP(buf)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, daw.Wrap(daw.KindTimeout, err, "bridge response deadline expired")
		}
		return nil, daw.Wrap(daw.KindDisconnected, err, "bridge receive failed")
	}
	var decoded map[string]any
	if err := protocol.DecodeBridgePacket(buf[:n], &decoded); err != nil {
		return nil, daw.Wrap(daw.KindProtocolError, err, "undecodable bridge datagram")
	}
	return decoded, nil
}

// reassemble collects the remaining chunks of a split response. The
// per-reassembly deadline scales with the declared chunk count. Duplicate
// indices are ignored; non-chunk packets arriving mid-reassembly are
// stray traffic, logged and skipped. The buffer is local to this call:
// a timeout discards it and the next operation starts clean.
func (c *Client) reassemble(first map[string]any) (map[string]any, error) {
	env, err := protocol.ChunkFromMap(first)
	if err != nil {
		return nil, daw.Wrap(daw.KindProtocolError, err, "bad first chunk")
	}
	total := env.Total
	c.logger.Info("bridge chunked response", "total_chunks", total)

	chunks := map[int]string{env.Index: env.Data}
	c.metrics.BridgeChunksReassembled.WithLabelValues("used").Inc()

	// 100ms per chunk plus a 5s base, floor 5s.
	window := time.Duration(total)*100*time.Millisecond + 5*time.Second
	if window < 5*time.Second {
		window = 5 * time.Second
	}
	deadline := time.Now().Add(window)

	for len(chunks) < total {
		decoded, err := c.readDecoded(deadline)
		if err != nil {
			if daw.IsKind(err, daw.KindTimeout) {
				missing := protocol.MissingIndices(chunks, total)
				c.logger.Error("chunk reassembly timed out",
					"received", len(chunks), "expected", total, "missing", missing)
				return nil, daw.E(daw.KindProtocolError,
					"chunk reassembly timed out: %d/%d received", len(chunks), total).
					WithDetails(map[string]any{
						"missing":  missing,
						"received": len(chunks),
						"expected": total,
					})
			}
			return nil, err
		}
		if !protocol.IsChunk(decoded) {
			c.logger.Warn("non-chunk packet during reassembly, ignoring")
			c.metrics.BridgeChunksReassembled.WithLabelValues("stray").Inc()
			continue
		}
		next, err := protocol.ChunkFromMap(decoded)
		if err != nil {
			c.logger.Warn("bad chunk envelope during reassembly, ignoring", "error", err)
			c.metrics.BridgeChunksReassembled.WithLabelValues("stray").Inc()
			continue
		}
		if _, dup := chunks[next.Index]; dup {
			c.logger.Warn("duplicate chunk ignored", "index", next.Index)
			c.metrics.BridgeChunksReassembled.WithLabelValues("duplicate").Inc()
			continue
		}
		chunks[next.Index] = next.Data
		c.metrics.BridgeChunksReassembled.WithLabelValues("used").Inc()
	}

	payload, err := protocol.ReassembleChunks(chunks, total)
	if err != nil {
		return nil, daw.Wrap(daw.KindProtocolError, err, "chunk reassembly failed")
	}
	c.logger.Info("bridge chunked response reassembled",
		"bytes", len(payload), "chunks", total)

	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, daw.Wrap(daw.KindProtocolError, err, "reassembled payload is not JSON")
	}
	return resp, nil
}
