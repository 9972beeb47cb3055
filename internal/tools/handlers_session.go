package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// registerSessionTools covers transport and session-level control.
func registerSessionTools(r *Registry, deps Deps) {
	r.mustRegister(Tool{
		Name:        "get_session_info",
		Description: "Get the current session state: tempo, time signature, track count, playing state.",
		ErrorPrefix: "could not read session info",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{Type: "get_session_info"}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: "session info retrieved", Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "set_tempo",
		Description: "Set the session tempo in BPM.",
		Schema: `{
			"type": "object",
			"properties": {"bpm": {"type": "number", "minimum": 20, "maximum": 999}},
			"required": ["bpm"]
		}`,
		ErrorPrefix: "could not set tempo",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			bpm, err := args.Float("bpm")
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_tempo",
				Params: map[string]any{"tempo": bpm},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			return &Result{Message: fmt.Sprintf("tempo set to %.2f BPM", bpm), Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "start_playback",
		Description: "Start session playback.",
		ErrorPrefix: "could not start playback",
		Handler:     simpleCommand(deps, "start_playback", "playback started"),
	})

	r.mustRegister(Tool{
		Name:        "stop_playback",
		Description: "Stop session playback.",
		ErrorPrefix: "could not stop playback",
		Handler:     simpleCommand(deps, "stop_playback", "playback stopped"),
	})

	r.mustRegister(Tool{
		Name:        "set_metronome",
		Description: "Enable or disable the metronome.",
		Schema: `{
			"type": "object",
			"properties": {"enabled": {"type": "boolean"}},
			"required": ["enabled"]
		}`,
		ErrorPrefix: "could not set metronome",
		Handler: func(ctx context.Context, args Args) (*Result, error) {
			enabled, err := args.BoolOr("enabled", true)
			if err != nil {
				return nil, err
			}
			resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{
				Type:   "set_metronome",
				Params: map[string]any{"enabled": enabled},
			}, daw.SendOptions{})
			if err != nil {
				return nil, err
			}
			state := "off"
			if enabled {
				state = "on"
			}
			return &Result{Message: "metronome " + state, Data: resultData(resp)}, nil
		},
	})

	r.mustRegister(Tool{
		Name:        "undo",
		Description: "Undo the last DAW action.",
		ErrorPrefix: "could not undo",
		Handler:     simpleCommand(deps, "undo", "undid last action"),
	})

	r.mustRegister(Tool{
		Name:        "redo",
		Description: "Redo the last undone DAW action.",
		ErrorPrefix: "could not redo",
		Handler:     simpleCommand(deps, "redo", "redid last action"),
	})
}

// simpleCommand builds a handler for argument-free pass-through commands.
func simpleCommand(deps Deps, commandType, message string) Handler {
	return func(ctx context.Context, args Args) (*Result, error) {
		resp, err := deps.Pipeline.SendCommand(ctx, daw.Command{Type: commandType}, daw.SendOptions{})
		if err != nil {
			return nil, err
		}
		return &Result{Message: message, Data: resultData(resp)}, nil
	}
}
