package daw

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/protocol"
	"github.com/haasonsaas/livebridge/internal/ready"
)

// fakeDAW is a scripted loopback stand-in for the DAW scripting endpoint.
// The script decides, per command, whether to answer or to drop the
// connection mid-exchange.
type fakeDAW struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	received []Command
	script   func(n int, cmd Command) (Response, bool) // ok=false drops the connection
}

func newFakeDAW(t *testing.T, script func(n int, cmd Command) (Response, bool)) *fakeDAW {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeDAW{t: t, ln: ln, script: script}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeDAW) addr() string { return f.ln.Addr().String() }

func (f *fakeDAW) commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeDAW) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeDAW) handle(conn net.Conn) {
	defer conn.Close()
	lr := protocol.NewLineReader(conn)
	for {
		var cmd Command
		if err := lr.ReadObject(&cmd); err != nil {
			return
		}
		f.mu.Lock()
		f.received = append(f.received, cmd)
		n := len(f.received)
		f.mu.Unlock()

		resp, ok := f.script(n, cmd)
		if !ok {
			return // drop without replying
		}
		data, _ := json.Marshal(resp)
		if _, err := conn.Write(append(data, '\n')); err != nil {
			return
		}
	}
}

func newTestPipeline(t *testing.T, addr string) (*Pipeline, *ready.Signals) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.Nop()
	signals := &ready.Signals{}
	tcp := NewTCPClient(addr, logger, metrics, signals)
	t.Cleanup(tcp.Close)
	return NewPipeline(tcp, nil, nil, logger, metrics), signals
}

func alwaysSucceed(n int, cmd Command) (Response, bool) {
	return Response{Status: "success", Result: map[string]any{"echo": cmd.Type}}, true
}

func TestPipeline_InstantPropertySet(t *testing.T) {
	f := newFakeDAW(t, alwaysSucceed)
	p, signals := newTestPipeline(t, f.addr())

	start := time.Now()
	resp, err := p.SendCommand(context.Background(), Command{
		Type:   "set_tempo",
		Params: map[string]any{"tempo": 128.0},
	}, SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("tier-0 command took %v; no settle delay expected", elapsed)
	}
	if !signals.DawConnected.IsSet() {
		t.Error("first session should set the daw-connected event")
	}

	got := f.commands()
	if len(got) != 1 || got[0].Type != "set_tempo" {
		t.Fatalf("daw saw %+v", got)
	}
	if got[0].Params["tempo"] != 128.0 {
		t.Errorf("params did not survive the wire: %+v", got[0].Params)
	}
}

func TestPipeline_StructuralSettleDelay(t *testing.T) {
	f := newFakeDAW(t, alwaysSucceed)
	p, _ := newTestPipeline(t, f.addr())

	start := time.Now()
	if _, err := p.SendCommand(context.Background(), Command{Type: "create_midi_track"}, SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("tier-2 command returned after %v; settle delay not applied", elapsed)
	}
}

func TestPipeline_IdempotentRetryAfterDrop(t *testing.T) {
	f := newFakeDAW(t, func(n int, cmd Command) (Response, bool) {
		if n == 1 {
			return Response{}, false // kill the connection mid-exchange
		}
		return Response{Status: "success"}, true
	})
	p, _ := newTestPipeline(t, f.addr())

	resp, err := p.SendCommand(context.Background(), Command{Type: "get_session_info"}, SendOptions{})
	if err != nil {
		t.Fatalf("idempotent command should survive one drop: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := f.commands(); len(got) != 2 {
		t.Errorf("expected exactly 2 attempts, daw saw %d", len(got))
	}
}

func TestPipeline_NonIdempotentNeverRetried(t *testing.T) {
	f := newFakeDAW(t, func(n int, cmd Command) (Response, bool) {
		return Response{}, false
	})
	p, _ := newTestPipeline(t, f.addr())

	_, err := p.SendCommand(context.Background(), Command{Type: "create_midi_track"}, SendOptions{})
	if err == nil {
		t.Fatal("expected failure when connection drops")
	}
	if KindOf(err) != KindDisconnected {
		t.Errorf("kind = %v, want disconnected", KindOf(err))
	}
	if got := f.commands(); len(got) != 1 {
		t.Errorf("non-idempotent command attempted %d times, want 1", len(got))
	}
}

func TestPipeline_DawReportedError(t *testing.T) {
	f := newFakeDAW(t, func(n int, cmd Command) (Response, bool) {
		return Response{Status: "error", Message: "unknown device: Wavetable"}, true
	})
	p, _ := newTestPipeline(t, f.addr())

	_, err := p.SendCommand(context.Background(), Command{
		Type:   "load_instrument_or_effect",
		Params: map[string]any{"uri": "Wavetable"},
	}, SendOptions{})
	if KindOf(err) != KindDawReported {
		t.Fatalf("kind = %v (%v), want daw_reported", KindOf(err), err)
	}
	// The retry budget must not apply to DAW-reported failures.
	if got := f.commands(); len(got) != 1 {
		t.Errorf("daw-reported error retried: %d attempts", len(got))
	}
}

func TestPipeline_TimeoutOnSilentDAW(t *testing.T) {
	f := newFakeDAW(t, func(n int, cmd Command) (Response, bool) {
		time.Sleep(5 * time.Second)
		return Response{Status: "success"}, true
	})
	p, _ := newTestPipeline(t, f.addr())

	start := time.Now()
	_, err := p.SendCommand(context.Background(), Command{Type: "create_midi_track"},
		SendOptions{Timeout: 100 * time.Millisecond})
	if KindOf(err) != KindTimeout {
		t.Fatalf("kind = %v (%v), want timeout", KindOf(err), err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v; deadline not honored", elapsed)
	}
}

func TestPipeline_WriterMutexOrdersCommands(t *testing.T) {
	f := newFakeDAW(t, alwaysSucceed)
	p, _ := newTestPipeline(t, f.addr())

	// Prime the connection so concurrent callers share one session.
	if _, err := p.SendCommand(context.Background(), Command{Type: "get_session_info"}, SendOptions{}); err != nil {
		t.Fatalf("prime: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.SendCommand(context.Background(), Command{Type: "set_tempo"}, SendOptions{}); err != nil {
				t.Errorf("concurrent send: %v", err)
			}
		}()
	}
	wg.Wait()

	// One response per request, none crossed: every command got success
	// and the DAW saw all 9 in some serial order.
	if got := f.commands(); len(got) != 9 {
		t.Errorf("daw saw %d commands, want 9", len(got))
	}
}

func TestPipeline_RejectsEmptyCommandType(t *testing.T) {
	p, _ := newTestPipeline(t, "127.0.0.1:1") // never dialed
	_, err := p.SendCommand(context.Background(), Command{}, SendOptions{})
	if KindOf(err) != KindInvalidInput {
		t.Errorf("kind = %v, want invalid_input", KindOf(err))
	}
}

func TestPipeline_DisconnectedWhenDAWUnreachable(t *testing.T) {
	// Port 1 on loopback is essentially never listening.
	p, _ := newTestPipeline(t, "127.0.0.1:1")
	_, err := p.SendCommand(context.Background(), Command{Type: "get_session_info"}, SendOptions{})
	if err == nil {
		t.Fatal("expected error for unreachable DAW")
	}
	if KindOf(err) != KindDisconnected {
		t.Errorf("kind = %v, want disconnected", KindOf(err))
	}
}
