package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/ready"
	"github.com/haasonsaas/livebridge/internal/tools"
)

func newTestDashboard(t *testing.T) (*Dashboard, *tools.Dispatcher) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	registry := tools.NewRegistry()
	if err := registry.Register(tools.Tool{
		Name:        "noop",
		Description: "does nothing",
		Handler: func(ctx context.Context, args tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: "done"}, nil
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	dispatcher := tools.NewDispatcher(registry, &ready.Signals{}, false, logger, observability.Nop())
	status := func() any { return map[string]any{"daw_connected": false} }
	return NewDashboard("127.0.0.1:0", dispatcher, status, logger), dispatcher
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET %s: content type %q", path, ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("GET %s: bad JSON %q: %v", path, body, err)
	}
}

func TestDashboard_Endpoints(t *testing.T) {
	d, dispatcher := newTestDashboard(t)
	srv := httptest.NewServer(d.handler())
	defer srv.Close()

	dispatcher.Dispatch(context.Background(), "noop", nil)
	dispatcher.Dispatch(context.Background(), "missing", nil)

	var health map[string]string
	getJSON(t, srv, "/healthz", &health)
	if health["status"] != "ok" {
		t.Errorf("healthz = %v", health)
	}

	var status map[string]any
	getJSON(t, srv, "/api/status", &status)
	if _, ok := status["daw_connected"]; !ok {
		t.Errorf("status = %v", status)
	}

	var calls struct {
		Recent []tools.CallRecord `json:"recent"`
		Top    []tools.ToolCount  `json:"top"`
	}
	getJSON(t, srv, "/api/calls", &calls)
	if len(calls.Recent) != 2 {
		t.Errorf("recent = %+v", calls.Recent)
	}
	if len(calls.Top) == 0 || calls.Top[0].Tool == "" {
		t.Errorf("top = %+v", calls.Top)
	}

	var toolList []map[string]string
	getJSON(t, srv, "/api/tools", &toolList)
	if len(toolList) != 1 || toolList[0]["name"] != "noop" {
		t.Errorf("tools = %v", toolList)
	}

	// Metrics endpoint serves the Prometheus text format.
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}
}

func TestDashboard_IndexAndNotFound(t *testing.T) {
	d, _ := newTestDashboard(t)
	srv := httptest.NewServer(d.handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Errorf("index status = %d, %d bytes", resp.StatusCode, len(body))
	}

	resp, err = srv.Client().Get(srv.URL + "/no/such/page")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}
}

func TestDashboard_StartStop(t *testing.T) {
	d, _ := newTestDashboard(t)
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	addr := d.Addr()
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()

	d.Stop(context.Background())
	if _, err := http.Get("http://" + addr + "/healthz"); err == nil {
		t.Error("dashboard still serving after Stop")
	}
}
