package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// registerBridgeTools exposes the deep-API surface served by the in-DAW
// scripting device over the OSC channel.
func registerBridgeTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name: "discover_device_parameters",
		Description: "Discover every parameter of a device, including hidden ones the " +
			"generic API does not expose. Large devices answer in chunks.",
		Schema:      deviceRefSchema,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "parameter discovery failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "discover_params", map[string]any{
				"track_index": track, "device_index": device,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			count := 0
			if list, ok := result["parameters"].([]any); ok {
				count = len(list)
			}
			return &Result{
				Message: fmt.Sprintf("discovered %d parameters on device %d/%d", count, track, device),
				Data:    result,
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "get_hidden_parameters",
		Description: "Read the current values of a device's hidden parameters.",
		Schema:      deviceRefSchema,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "could not read hidden parameters",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "get_hidden_params", map[string]any{
				"track_index": track, "device_index": device,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "hidden parameters retrieved", Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "set_hidden_parameter",
		Description: "Set one hidden device parameter by its discovered index.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameter_index": {"type": "integer", "minimum": 0},
				"value": {"type": "number"}
			},
			"required": ["track_index", "device_index", "parameter_index", "value"]
		}`,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "could not set hidden parameter",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			index, err := args.Int("parameter_index")
			if err != nil {
				return nil, err
			}
			value, err := args.Float("value")
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "set_hidden_param", map[string]any{
				"track_index": track, "device_index": device,
				"parameter_index": index, "value": value,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("hidden parameter %d set", index), Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "batch_set_hidden_parameters",
		Description: "Set many hidden parameters in one bridge operation. Each entry is " +
			"{parameter_index, value}. The deadline scales with the batch size.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameters": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"parameter_index": {"type": "integer", "minimum": 0},
							"value": {"type": "number"}
						},
						"required": ["parameter_index", "value"]
					}
				}
			},
			"required": ["track_index", "device_index", "parameters"]
		}`,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "batch set failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, device, err := deviceRef(args)
			if err != nil {
				return nil, err
			}
			parameters, err := args.List("parameters")
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "batch_set_hidden_params", map[string]any{
				"track_index": track, "device_index": device, "parameters": parameters,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("%d hidden parameters set", len(parameters)),
				Data:    result,
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "analyze_audio",
		Description: "Run level analysis on a track's output (or the master when " +
			"track_index is omitted). Queued when the bridge is busy.",
		Schema: `{
			"type": "object",
			"properties": {"track_index": {"type": "integer", "minimum": 0}}
		}`,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "audio analysis failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, err := args.IntOr("track_index", -1)
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "analyze_audio", map[string]any{
				"track_index": track,
			}, daw.SendOptions{Queueable: true})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "audio analysis complete", Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "analyze_spectrum",
		Description: "Capture a spectrum snapshot from the bridge device. Queued when busy.",
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "spectrum analysis failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			result, err := deps.Pipeline.SendBridge(ctx, "analyze_spectrum", nil,
				daw.SendOptions{Queueable: true})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "spectrum captured", Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "get_cue_points",
		Description: "List the arrangement cue points.",
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "could not list cue points",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			result, err := deps.Pipeline.SendBridge(ctx, "get_cue_points", nil, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "cue points listed", Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "jump_to_cue_point",
		Description: "Move the playhead to a cue point by index.",
		Schema: `{
			"type": "object",
			"properties": {"cue_point_index": {"type": "integer", "minimum": 0}},
			"required": ["cue_point_index"]
		}`,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "could not jump to cue point",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			index, err := args.Int("cue_point_index")
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "jump_to_cue_point", map[string]any{
				"cue_point_index": index,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("jumped to cue point %d", index), Data: result}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "modify_clip_notes_by_id",
		Description: "Surgically modify notes in a clip by stable note id. Each " +
			"modification is {note_id, pitch?, start_time?, duration?, velocity?}.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"clip_index": {"type": "integer", "minimum": 0},
				"modifications": {"type": "array", "minItems": 1}
			},
			"required": ["track_index", "clip_index", "modifications"]
		}`,
		Needs:       Needs{Bridge: true},
		ErrorPrefix: "note modification failed",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, clip, err := clipRef(args)
			if err != nil {
				return nil, err
			}
			mods, err := args.List("modifications")
			if err != nil {
				return nil, err
			}
			result, err := deps.Pipeline.SendBridge(ctx, "modify_clip_notes", map[string]any{
				"track_index": track, "clip_index": clip, "modifications": mods,
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("%d notes modified", len(mods)), Data: result}, nil
		},
	})
}
