package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/haasonsaas/livebridge/internal/catalog"
	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/ready"
	"github.com/haasonsaas/livebridge/internal/store"
)

// Pipeline is the command waypoint as handlers see it. Implemented by
// daw.Pipeline.
type Pipeline interface {
	SendCommand(ctx context.Context, cmd daw.Command, opts daw.SendOptions) (daw.Response, error)
	SendBridge(ctx context.Context, commandType string, params map[string]any, opts daw.SendOptions) (map[string]any, error)
	SendRealtime(cmd daw.Command) error
}

// BridgeInfo is the slice of the OSC client the capability surfaces
// need. Implemented by m4l.Client; nil when the bridge is disabled.
type BridgeInfo interface {
	Ping(ctx context.Context) (string, error)
	BridgeVersion() string
}

// Catalog is the browser cache as handlers see it. Implemented by
// catalog.Cache.
type Catalog interface {
	Resolve(nameOrURI string, timeout time.Duration) string
	Search(query, category string, limit int) []catalog.Item
	ByCategory(category string) []catalog.Item
	Populate(ctx context.Context) error
	Status() catalog.Status
	Size() int
}

// Deps bundles everything the handler sets close over.
type Deps struct {
	Pipeline  Pipeline
	Bridge    BridgeInfo
	Catalog   Catalog
	Snapshots *store.Snapshots
	Macros    *store.Macros
	ParamMaps *store.ParameterMaps
	Templates *store.Templates
	Signals   *ready.Signals
	Version   string
	Logger    *slog.Logger
}

// DefaultRegistry builds the full tool table for one server instance.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	registerSessionTools(r, deps)
	registerTrackTools(r, deps)
	registerClipTools(r, deps)
	registerDeviceTools(r, deps)
	registerBridgeTools(r, deps)
	registerCatalogTools(r, deps)
	registerStoreTools(r, deps)
	registerCapabilityTools(r, deps)
	return r
}

// resultData normalizes a pipeline response payload for the envelope.
func resultData(resp daw.Response) any {
	if resp.Result == nil {
		return map[string]any{}
	}
	return resp.Result
}
