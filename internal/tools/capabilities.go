package tools

import (
	"context"
	"fmt"
)

// Capabilities is the readiness report served by the tool of the same
// name and by the capabilities resource.
type Capabilities struct {
	DawConnected     bool   `json:"daw_connected"`
	BridgeConnected  bool   `json:"bridge_connected"`
	CatalogPopulated bool   `json:"catalog_populated"`
	CatalogItems     int    `json:"catalog_items"`
	ToolCount        int    `json:"tool_count"`
	ServerVersion    string `json:"server_version"`
	BridgeVersion    string `json:"bridge_version,omitempty"`
}

// capabilitiesReport builds the snapshot from in-memory state only: no
// DAW round trips, so the report is always fast.
func capabilitiesReport(deps Deps, toolCount int) Capabilities {
	caps := Capabilities{
		DawConnected:     deps.Signals.DawConnected.IsSet(),
		CatalogPopulated: deps.Signals.CatalogPopulated.IsSet(),
		CatalogItems:     deps.Catalog.Size(),
		ToolCount:        toolCount,
		ServerVersion:    deps.Version,
	}
	if deps.Bridge != nil {
		caps.BridgeVersion = deps.Bridge.BridgeVersion()
		caps.BridgeConnected = caps.BridgeVersion != ""
	}
	return caps
}

func registerCapabilityTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "get_capabilities",
		Description: "Report what is currently reachable: DAW connection, bridge device, " +
			"catalog population, and version info.",
		ErrorPrefix: "could not report capabilities",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			caps := capabilitiesReport(deps, r.Len())
			return &Result{Message: "capabilities reported", Data: caps}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "ping_bridge",
		Description: "Actively ping the in-DAW bridge device and report its version. " +
			"Served from a short cache when pinged recently.",
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "bridge ping failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			version, err := deps.Bridge.Ping(ctx)
			if err != nil {
				return nil, err
			}
			msg := "bridge is alive"
			if version != "" {
				msg = fmt.Sprintf("bridge is alive, version %s", version)
			}
			return &Result{Message: msg, Data: map[string]any{"version": version}}, nil
		},
	})
}
