package daw

import (
	"log/slog"
	"net"

	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/protocol"
)

// MaxRealtimeDatagram caps a single realtime payload. Parameter updates
// are tiny; anything larger belongs on the TCP channel.
const MaxRealtimeDatagram = 4096

// RealtimeSender pushes fire-and-forget parameter updates to the DAW's
// realtime UDP port. No reads, no retries, no ordering guarantee; the
// caller owns rate limiting.
type RealtimeSender struct {
	conn    *net.UDPConn
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRealtimeSender opens the outbound UDP socket.
func NewRealtimeSender(addr string, logger *slog.Logger, metrics *observability.Metrics) (*RealtimeSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, Wrap(KindDisconnected, err, "bad realtime address %s", addr)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, Wrap(KindDisconnected, err, "cannot open realtime socket to %s", addr)
	}
	return &RealtimeSender{
		conn:    conn,
		logger:  logger.With("transport", "udp_rt", "addr", addr),
		metrics: metrics,
	}, nil
}

// Send emits one datagram and returns immediately.
func (s *RealtimeSender) Send(cmd Command) error {
	line, err := protocol.EncodeLine(cmd)
	if err != nil {
		return Wrap(KindProtocolError, err, "cannot frame realtime %s", cmd.Type)
	}
	// Drop the newline; datagrams are already delimited.
	payload := line[:len(line)-1]
	if len(payload) > MaxRealtimeDatagram {
		return E(KindInvalidInput, "realtime payload %d bytes exceeds %d", len(payload), MaxRealtimeDatagram)
	}
	if _, err := s.conn.Write(payload); err != nil {
		s.metrics.RealtimeDatagrams.WithLabelValues("error").Inc()
		return Wrap(KindDisconnected, err, "realtime send failed")
	}
	s.metrics.RealtimeDatagrams.WithLabelValues("sent").Inc()
	return nil
}

// Close releases the socket.
func (s *RealtimeSender) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
