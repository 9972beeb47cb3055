package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/haasonsaas/livebridge/internal/catalog"
	"github.com/haasonsaas/livebridge/internal/config"
	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/m4l"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/ready"
	"github.com/haasonsaas/livebridge/internal/store"
	"github.com/haasonsaas/livebridge/internal/tools"
)

// ErrDashboardBind means the dashboard port could not be bound. Mapped
// to its own exit code so service managers can tell it apart from the
// singleton case.
var ErrDashboardBind = errors.New("dashboard port bind failed")

// Daemon owns every long-lived component and runs the stdio loop.
// Construction wires everything but opens no sockets; Run does the
// binding so failures happen inside the lifecycle, not half in the
// constructor.
type Daemon struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger
	metrics *observability.Metrics
	signals *ready.Signals

	tcp       *daw.TCPClient
	rt        *daw.RealtimeSender
	bridge    *m4l.Client
	pipeline  *daw.Pipeline
	catalog   *catalog.Cache
	templates *store.Templates

	dispatcher *tools.Dispatcher
	mcp        *MCPServer
	dashboard  *Dashboard
}

func New(cfg *config.Config, version string, logger *slog.Logger, metrics *observability.Metrics) *Daemon {
	signals := &ready.Signals{}

	tcp := daw.NewTCPClient(cfg.TCPAddr(), logger, metrics, signals)

	// The realtime channel is best-effort: a failed dial degrades
	// stream_parameter_value to NotReady instead of blocking startup.
	rt, err := daw.NewRealtimeSender(cfg.UDPAddr(), logger, metrics)
	if err != nil {
		logger.Warn("realtime channel unavailable", "addr", cfg.UDPAddr(), "error", err)
		rt = nil
	}

	var bridge *m4l.Client
	var bridgeSender daw.BridgeSender
	var bridgeInfo tools.BridgeInfo
	if cfg.Bridge.Enabled {
		bridge = m4l.New(cfg.BridgeSendAddr(), cfg.BridgeRecvAddr(), version, logger, metrics)
		bridgeSender = bridge
		bridgeInfo = bridge
	}

	pipeline := daw.NewPipeline(tcp, bridgeSender, rt, logger, metrics)
	cat := catalog.NewCache(pipeline, cfg.Catalog.Dir, signals, logger, metrics)

	templates := store.NewTemplates(cfg.Templates.Path, logger)
	if err := templates.Load(); err != nil {
		logger.Warn("could not load chain templates", "path", cfg.Templates.Path, "error", err)
	}

	deps := tools.Deps{
		Pipeline:  pipeline,
		Bridge:    bridgeInfo,
		Catalog:   cat,
		Snapshots: store.NewSnapshots(),
		Macros:    store.NewMacros(),
		ParamMaps: store.NewParameterMaps(),
		Templates: templates,
		Signals:   signals,
		Version:   version,
		Logger:    logger,
	}
	registry := tools.DefaultRegistry(deps)
	dispatcher := tools.NewDispatcher(registry, signals, cfg.Bridge.Enabled, logger, metrics)

	d := &Daemon{
		cfg:        cfg,
		version:    version,
		logger:     logger.With("component", "daemon"),
		metrics:    metrics,
		signals:    signals,
		tcp:        tcp,
		rt:         rt,
		bridge:     bridge,
		pipeline:   pipeline,
		catalog:    cat,
		templates:  templates,
		dispatcher: dispatcher,
		mcp: NewMCPServer(cfg.Server.Name, version, dispatcher,
			tools.Resources(deps, registry), tools.Prompts(), logger),
	}

	if cfg.Dashboard.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Dashboard.Host, cfg.Dashboard.Port)
		d.dashboard = NewDashboard(addr, dispatcher, d.statusReport, logger)
	}
	return d
}

// Run executes the daemon until the context is canceled or stdin
// closes. The singleton guard is the first gate: a second instance
// returns ErrAlreadyRunning immediately.
func (d *Daemon) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	guard, err := AcquireSingleton(d.cfg.Singleton.Port)
	if err != nil {
		return err
	}
	defer guard.Release()

	if d.dashboard != nil {
		if err := d.dashboard.Start(); err != nil {
			return fmt.Errorf("%w: %v", ErrDashboardBind, err)
		}
	}

	d.startCatalog(ctx)

	d.logger.Info("livebridge ready",
		"version", d.version,
		"daw", d.cfg.TCPAddr(),
		"bridge_enabled", d.cfg.Bridge.Enabled,
		"dashboard", d.dashboard != nil)

	serveErr := d.mcp.Serve(ctx, in, out)

	d.shutdown()

	// Canceled context and closed stdin are both clean exits.
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) && !errors.Is(serveErr, io.EOF) {
		return serveErr
	}
	return nil
}

// startCatalog warms the catalog without blocking the stdio loop: disk
// snapshot first, then a live walk only if the snapshot is unusable.
// The walk needs a connected DAW, so failures here are routine on
// startup and just leave the catalog cold until refresh_catalog.
func (d *Daemon) startCatalog(ctx context.Context) {
	go func() {
		if err := d.catalog.LoadFromDisk(); err == nil {
			return
		}
		populateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := d.catalog.Populate(populateCtx); err != nil {
			d.logger.Info("catalog not populated at startup", "reason", err)
		}
	}()

	if spec := d.cfg.Catalog.RefreshSchedule; spec != "" {
		if err := d.catalog.ScheduleRefresh(spec); err != nil {
			d.logger.Warn("catalog refresh schedule rejected", "schedule", spec, "error", err)
		}
	}
}

// statusReport composes the dashboard's /api/status payload.
func (d *Daemon) statusReport() any {
	return map[string]any{
		"version":        d.version,
		"daw_connected":  d.signals.DawConnected.IsSet(),
		"catalog":        d.catalog.Status(),
		"bridge_enabled": d.cfg.Bridge.Enabled,
		"tools":          d.dispatcher.Registry().Len(),
	}
}

// shutdown releases components in reverse dependency order.
func (d *Daemon) shutdown() {
	if d.dashboard != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		d.dashboard.Stop(shutdownCtx)
		cancel()
	}
	d.catalog.Close()
	if d.bridge != nil {
		d.bridge.Close()
	}
	if d.rt != nil {
		d.rt.Close()
	}
	d.tcp.Close()
	d.logger.Info("livebridge stopped")
}
