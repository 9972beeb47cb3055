package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/livebridge/internal/tools"
)

// Dashboard is the local diagnostics surface: health, metrics, recent
// tool calls, and the tool table. It binds loopback only and is off by
// default; the agent never talks to it, it exists for the human
// operator.
type Dashboard struct {
	addr       string
	dispatcher *tools.Dispatcher
	// status reports current reachability, composed by the daemon.
	status func() any
	logger *slog.Logger

	httpServer *http.Server
	listener   net.Listener
}

func NewDashboard(addr string, dispatcher *tools.Dispatcher, status func() any, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		addr:       addr,
		dispatcher: dispatcher,
		status:     status,
		logger:     logger.With("component", "dashboard"),
	}
}

// Start binds and serves in the background. A bind failure is returned
// synchronously so startup can fail fast on a taken port.
func (d *Dashboard) Start() error {
	listener, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("dashboard listen on %s: %w", d.addr, err)
	}

	server := &http.Server{
		Addr:              d.addr,
		Handler:           d.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.httpServer = server
	d.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("dashboard server error", "error", err)
		}
	}()

	d.logger.Info("dashboard listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down, draining in-flight requests.
func (d *Dashboard) Stop(ctx context.Context) {
	if d.httpServer == nil {
		return
	}
	shutdownCtx := ctx
	var cancel context.CancelFunc
	if shutdownCtx == nil {
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("dashboard shutdown error", "error", err)
	}
	d.httpServer = nil
	d.listener = nil
}

// Addr reports the bound address, useful when the port was 0.
func (d *Dashboard) Addr() string {
	if d.listener == nil {
		return d.addr
	}
	return d.listener.Addr().String()
}

func (d *Dashboard) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", d.handleStatus)
	mux.HandleFunc("/api/calls", d.handleCalls)
	mux.HandleFunc("/api/tools", d.handleTools)
	mux.HandleFunc("/", d.handleIndex)
	return mux
}

func (d *Dashboard) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (d *Dashboard) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.status())
}

func (d *Dashboard) handleCalls(w http.ResponseWriter, r *http.Request) {
	log := d.dispatcher.CallLog()
	writeJSON(w, map[string]any{
		"recent": log.Recent(50),
		"top":    log.Top(10),
	})
}

func (d *Dashboard) handleTools(w http.ResponseWriter, r *http.Request) {
	type toolEntry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	list := d.dispatcher.Registry().List()
	out := make([]toolEntry, 0, len(list))
	for _, t := range list {
		out = append(out, toolEntry{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, out)
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encoding failed"}`))
		return
	}
	_, _ = w.Write(data)
}

const indexPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>livebridge</title>
<style>
body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
h1 { font-size: 1.2rem; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { border: 1px solid #444; padding: 0.3rem 0.6rem; text-align: left; }
.err { color: #e66; }
</style></head>
<body>
<h1>livebridge</h1>
<div id="status"></div>
<h1>recent calls</h1>
<table id="calls"><tr><th>tool</th><th>outcome</th><th>ms</th><th>args</th></tr></table>
<script>
async function refresh() {
  const status = await (await fetch('/api/status')).json();
  document.getElementById('status').textContent = JSON.stringify(status);
  const calls = await (await fetch('/api/calls')).json();
  const table = document.getElementById('calls');
  while (table.rows.length > 1) table.deleteRow(1);
  for (const c of calls.recent) {
    const row = table.insertRow();
    row.insertCell().textContent = c.tool;
    const outcome = row.insertCell();
    outcome.textContent = c.outcome;
    if (c.outcome !== 'ok') outcome.className = 'err';
    row.insertCell().textContent = Math.round(c.duration / 1e6);
    row.insertCell().textContent = c.args;
  }
}
refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>
`
