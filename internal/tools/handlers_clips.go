package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/daw"
)

const clipRefSchema = `{
	"type": "object",
	"properties": {
		"track_index": {"type": "integer", "minimum": 0},
		"clip_index": {"type": "integer", "minimum": 0}
	},
	"required": ["track_index", "clip_index"]
}`

func registerClipTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name:        "create_clip",
		Description: "Create an empty MIDI clip in a session slot.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"clip_index": {"type": "integer", "minimum": 0},
				"length": {"type": "number", "exclusiveMinimum": 0}
			},
			"required": ["track_index", "clip_index"]
		}`,
		ErrorPrefix: "could not create clip",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, clip, err := clipRef(args)
			if err != nil {
				return nil, err
			}
			length, err := args.FloatOr("length", 4)
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "create_clip",
				Params: map[string]any{"track_index": track, "clip_index": clip, "length": length},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("clip created at %d/%d (%.1f beats)", track, clip, length),
				Data:    resultData(resp),
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "get_clip_info",
		Description: "Get clip metadata and note contents.",
		Schema:      clipRefSchema,
		ErrorPrefix: "could not read clip",
		Handler:     clipCommand(deps, "get_clip_info", "clip info retrieved"),
	})

	r.mustRegister(Tool{
		Name:        "delete_clip",
		Description: "Delete the clip in a session slot.",
		Schema:      clipRefSchema,
		ErrorPrefix: "could not delete clip",
		Handler:     clipCommand(deps, "delete_clip", "clip deleted"),
	})

	r.mustRegister(Tool{
		Name:        "fire_clip",
		Description: "Launch a session clip.",
		Schema:      clipRefSchema,
		ErrorPrefix: "could not fire clip",
		Handler:     clipCommand(deps, "fire_clip", "clip fired"),
	})

	r.mustRegister(Tool{
		Name:        "stop_clip",
		Description: "Stop the clip playing in a track's session slot.",
		Schema:      clipRefSchema,
		ErrorPrefix: "could not stop clip",
		Handler:     clipCommand(deps, "stop_clip", "clip stopped"),
	})

	r.mustRegister(Tool{
		Name:        "set_clip_name",
		Description: "Rename a session clip.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"clip_index": {"type": "integer", "minimum": 0},
				"name": {"type": "string", "minLength": 1}
			},
			"required": ["track_index", "clip_index", "name"]
		}`,
		ErrorPrefix: "could not rename clip",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, clip, err := clipRef(args)
			if err != nil {
				return nil, err
			}
			name, err := args.String("name")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_clip_name",
				Params: map[string]any{"track_index": track, "clip_index": clip, "name": name},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "clip renamed to " + name, Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "add_notes_to_clip",
		Description: "Add MIDI notes to a clip. Each note is " +
			"{pitch, start_time, duration, velocity?, mute?}.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"clip_index": {"type": "integer", "minimum": 0},
				"notes": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"properties": {
							"pitch": {"type": "integer", "minimum": 0, "maximum": 127},
							"start_time": {"type": "number", "minimum": 0},
							"duration": {"type": "number", "exclusiveMinimum": 0},
							"velocity": {"type": "integer", "minimum": 1, "maximum": 127},
							"mute": {"type": "boolean"}
						},
						"required": ["pitch", "start_time", "duration"]
					}
				}
			},
			"required": ["track_index", "clip_index", "notes"]
		}`,
		ErrorPrefix: "could not add notes",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, clip, err := clipRef(args)
			if err != nil {
				return nil, err
			}
			notes, err := args.List("notes")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "add_notes_to_clip",
				Params: map[string]any{"track_index": track, "clip_index": clip, "notes": notes},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("%d notes added to clip %d/%d", len(notes), track, clip),
				Data:    resultData(resp),
			}, nil
		},
	})

	r.mustRegister(Tool{
		Name: "create_clip_automation",
		Description: "Write an automation envelope into a clip for one device parameter. " +
			"Points are {time, value} pairs in beats.",
		Schema: `{
			"type": "object",
			"properties": {
				"track_index": {"type": "integer", "minimum": 0},
				"clip_index": {"type": "integer", "minimum": 0},
				"device_index": {"type": "integer", "minimum": 0},
				"parameter_name": {"type": "string", "minLength": 1},
				"points": {
					"type": "array",
					"minItems": 2,
					"items": {
						"type": "object",
						"properties": {
							"time": {"type": "number", "minimum": 0},
							"value": {"type": "number"}
						},
						"required": ["time", "value"]
					}
				}
			},
			"required": ["track_index", "clip_index", "device_index", "parameter_name", "points"]
		}`,
		ErrorPrefix: "could not write automation",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, clip, err := clipRef(args)
			if err != nil {
				return nil, err
			}
			device, err := args.Int("device_index")
			if err != nil {
				return nil, err
			}
			parameter, err := args.String("parameter_name")
			if err != nil {
				return nil, err
			}
			points, err := args.List("points")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type: "create_clip_automation",
				Params: map[string]any{
					"track_index": track, "clip_index": clip,
					"device_index": device, "parameter_name": parameter,
					"points": points,
				},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{
				Message: fmt.Sprintf("automation written for %s (%d points)", parameter, len(points)),
				Data:    resultData(resp),
			}, nil
		},
	})
}

func clipRef(args Args) (track, clip int, err error) {
	if track, err = args.Int("track_index"); err != nil {
		return 0, 0, err
	}
	if clip, err = args.Int("clip_index"); err != nil {
		return 0, 0, err
	}
	return track, clip, nil
}

func clipCommand(deps Deps, commandType, message string) Handler {
	return func(ctx context.Context, args Args) (*Result, error) {
		track, clip, err := clipRef(args)
		if err != nil {
			return nil, err
		}
		resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
			Type:   commandType,
			Params: map[string]any{"track_index": track, "clip_index": clip},
		}, daw.SendOptions{})
		if err != nil {
			return nil, err
		}
		return &Result{Message: message, Data: resultData(resp)}, nil
	}
}
