package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// Resource is one read-only document on the agent surface.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	Read        func(ctx context.Context) (string, error)
}

// Resources builds the read-only surface. catalog-status and
// capabilities come straight from memory; session and tracks are the
// two documents that genuinely need a DAW read.
func Resources(deps Deps, registry *Registry) []Resource {
	return []Resource{
		{
			URI:         "livebridge://session",
			Name:        "Session",
			Description: "Current session state: tempo, signature, playing state, track count.",
			MIMEType:    "application/json",
			Read: func(ctx context.Context) (string, error) {
				resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{Type: "get_session_info"}, daw.SendOptions{})
				if err != nil {
					return "", err
				}
				return marshalResource(resultData(resp))
			},
		},
		{
			URI:         "livebridge://tracks",
			Name:        "Tracks",
			Description: "All tracks with names, types, and mixer state.",
			MIMEType:    "application/json",
			Read: func(ctx context.Context) (string, error) {
				resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{Type: "get_tracks"}, daw.SendOptions{})
				if err != nil {
					return "", err
				}
				return marshalResource(resultData(resp))
			},
		},
		{
			URI:         "livebridge://catalog-status",
			Name:        "Catalog status",
			Description: "Browser catalog population state, item count, and data source.",
			MIMEType:    "application/json",
			Read: func(ctx context.Context) (string, error) {
				return marshalResource(deps.Catalog.Status())
			},
		},
		{
			URI:         "livebridge://capabilities",
			Name:        "Capabilities",
			Description: "What is reachable right now: DAW, bridge device, catalog, versions.",
			MIMEType:    "application/json",
			Read: func(ctx context.Context) (string, error) {
				return marshalResource(capabilitiesReport(deps, registry.Len()))
			},
		},
	}
}

func marshalResource(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode resource: %w", err)
	}
	return string(data), nil
}
