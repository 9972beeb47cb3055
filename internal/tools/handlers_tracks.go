package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/catalog"
	"github.com/haasonsaas/livebridge/internal/daw"
)

func registerTrackTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name:        "get_tracks",
		Description: "List all tracks with their names, types, and states.",
		ErrorPrefix: "could not list tracks",
		Handler:     simpleCommand(deps, "get_tracks", "tracks listed"),
	})

	r.mustRegister(Tool{
		Name:        "get_track_info",
		Description: "Get detailed info for one track: clips, devices, mixer state.",
		Schema:      trackIndexSchema,
		ErrorPrefix: "could not read track info",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, err := args.Int("track_index")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "get_track_info",
				Params: map[string]any{"track_index": track},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("track %d info retrieved", track), Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "create_midi_track",
		Description: "Create a new MIDI track. index -1 appends at the end.",
		Schema: `{
			"type": "object",
			"properties": {"index": {"type": "integer"}}
		}`,
		ErrorPrefix: "could not create MIDI track",
		Handler:     createTrackHandler(deps, "create_midi_track", "MIDI"),
	})

	r.mustRegister(Tool{
		Name:        "create_audio_track",
		Description: "Create a new audio track. index -1 appends at the end.",
		Schema: `{
			"type": "object",
			"properties": {"index": {"type": "integer"}}
		}`,
		ErrorPrefix: "could not create audio track",
		Handler:     createTrackHandler(deps, "create_audio_track", "audio"),
	})

	r.mustRegister(Tool{
		Name:        "delete_track",
		Description: "Delete a track by index.",
		Schema:      trackIndexSchema,
		ErrorPrefix: "could not delete track",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			track, err := args.Int("track_index")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "delete_track",
				Params: map[string]any{"track_index": track},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("track %d deleted", track), Data: resultData(resp)}, nil
		},
	})

	for _, setter := range []struct {
		tool, command, field, fieldType, message string
	}{
		{"set_track_name", "set_track_name", "name", "string", "track renamed"},
		{"set_track_color", "set_track_color", "color", "integer", "track recolored"},
		{"set_track_volume", "set_track_volume", "volume", "number", "track volume set"},
		{"set_track_pan", "set_track_pan", "pan", "number", "track pan set"},
		{"set_track_mute", "set_track_mute", "mute", "boolean", "track mute set"},
		{"set_track_solo", "set_track_solo", "solo", "boolean", "track solo set"},
		{"set_track_arm", "set_track_arm", "arm", "boolean", "track arm set"},
	} {
		s := setter
		r.mustRegister(Tool{
			Name:        s.tool,
			Description: "Set the " + s.field + " of a track.",
			Schema: fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"track_index": {"type": "integer", "minimum": 0},
					%q: {"type": %q}
				},
				"required": ["track_index", %q]
			}`, s.field, s.fieldType, s.field),
			ErrorPrefix: "could not " + s.tool,
			Handler: func(ctx context.Context, args Args) (*Result, error) {
				track, err := args.Int("track_index")
				if err != nil {
					return nil, err
				}
				value, present := args[s.field]
				if !present {
					return nil, daw.E(daw.KindInvalidInput, "missing required argument %q", s.field)
				}
				resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
					Type:   s.command,
					Params: map[string]any{"track_index": track, s.field: value},
				}, daw.SendOptions{})
				if err != nil {
					return nil, err
				}
				return &Result{Message: s.message, Data: resultData(resp)}, nil
			},
		})
	}

	r.mustRegister(Tool{
		Name: "create_instrument_track",
		Description: "Create a MIDI track, load an instrument onto it by name or URI, " +
			"then optionally name and color the track.",
		Schema: `{
			"type": "object",
			"properties": {
				"instrument_name": {"type": "string", "minLength": 1},
				"track_name": {"type": "string"},
				"color": {"type": "integer"}
			},
			"required": ["instrument_name"]
		}`,
		ErrorPrefix: "could not create instrument track",
		Handler:     createInstrumentTrackHandler(deps),
	})
}

func createTrackHandler(deps Deps, commandType, kind string) Handler {
	return func(ctx context.Context, args Args) (*Result, error) {
		index, err := args.IntOr("index", -1)
		if err != nil {
			return nil, err
		}
		resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
			Type:   commandType,
			Params: map[string]any{"index": index},
		}, daw.SendOptions{})
		if err != nil {
			return nil, err
		}
		return &Result{Message: kind + " track created", Data: resultData(resp)}, nil
	}
}

// createInstrumentTrackHandler is the compound flow: create, load the
// resolved instrument, then apply the cosmetic setters. Sub-results are
// collected so the caller sees each step.
func createInstrumentTrackHandler(deps Deps) Handler {
	return func(ctx context.Context, args Args) (*Result, error) {
		instrument, err := args.String("instrument_name")
		if err != nil {
			return nil, err
		}
		trackName, err := args.StringOr("track_name", "")
		if err != nil {
			return nil, err
		}
		color, err := args.IntOr("color", -1)
		if err != nil {
			return nil, err
		}

		steps := map[string]any{}

		created, err := deps.Pipeline.SendCommand(ctx, daw.Command{
			Type:   "create_midi_track",
			Params: map[string]any{"index": -1},
		}, daw.SendOptions{})
		if err != nil {
			return nil, err
		}
		steps["create_midi_track"] = resultData(created)

		trackIndex, ok := trackIndexFrom(created)
		if !ok {
			return nil, daw.E(daw.KindProtocolError, "create_midi_track response carries no track index")
		}

		// Cold catalog falls back to the raw name and lets the DAW judge it.
		uri := deps.Catalog.Resolve(instrument, catalog.DefaultResolveTimeout)
		loaded, err := deps.Pipeline.SendCommand(ctx, daw.Command{
			Type:   "load_instrument_or_effect",
			Params: map[string]any{"track_index": trackIndex, "uri": uri},
		}, daw.SendOptions{})
		if err != nil {
			return nil, err
		}
		steps["load_instrument_or_effect"] = resultData(loaded)

		if trackName != "" {
			named, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_track_name",
				Params: map[string]any{"track_index": trackIndex, "name": trackName},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			steps["set_track_name"] = resultData(named)
		}
		if color >= 0 {
			colored, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_track_color",
				Params: map[string]any{"track_index": trackIndex, "color": color},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			steps["set_track_color"] = resultData(colored)
		}

		return &Result{
			Message: fmt.Sprintf("instrument track ready with %s at index %d", instrument, trackIndex),
			Data:    map[string]any{"track_index": trackIndex, "uri": uri, "steps": steps},
		}, nil
	}
}

// trackIndexFrom digs the created track's index out of a response.
func trackIndexFrom(resp daw.Response) (int, bool) {
	for _, key := range []string{"track_index", "index"} {
		if v, ok := resp.Result[key]; ok {
			if n, ok := toInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

const trackIndexSchema = `{
	"type": "object",
	"properties": {"track_index": {"type": "integer", "minimum": 0}},
	"required": ["track_index"]
}`
