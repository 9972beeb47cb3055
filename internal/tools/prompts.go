package tools

import (
	"fmt"
	"strings"
)

// PromptArg documents one placeholder of a prompt template.
type PromptArg struct {
	Name        string
	Description string
	Required    bool
}

// Prompt is a named instruction template for the agent surface.
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArg
	Render      func(args map[string]string) string
}

// Prompts returns the built-in instruction templates.
func Prompts() []Prompt {
	return []Prompt{
		{
			Name:        "start_arrangement",
			Description: "Walk through laying out a new arrangement at a given tempo and genre.",
			Arguments: []PromptArg{
				{Name: "genre", Description: "Musical genre to aim for", Required: true},
				{Name: "tempo", Description: "Target tempo in BPM", Required: false},
			},
			Render: func(args map[string]string) string {
				tempo := args["tempo"]
				if tempo == "" {
					tempo = "a tempo typical for the genre"
				}
				return strings.TrimSpace(fmt.Sprintf(`
Set up a new %s arrangement. Steps:
1. Call set_tempo with %s.
2. Inspect the session with get_session_info and get_tracks.
3. Create the core tracks with create_instrument_track (drums, bass, lead).
4. Sketch an 8-bar loop per track: create_clip, then add_notes_to_clip.
5. Fire the clips together and adjust levels with set_track_volume.`,
					args["genre"], tempo))
			},
		},
		{
			Name:        "sound_design_session",
			Description: "Guide deep parameter work on one device via the bridge tools.",
			Arguments: []PromptArg{
				{Name: "track_index", Description: "Track holding the device", Required: true},
				{Name: "device_index", Description: "Device to work on", Required: true},
			},
			Render: func(args map[string]string) string {
				return strings.TrimSpace(fmt.Sprintf(`
Deep-edit the device at track %s, device %s:
1. discover_device_parameters to enumerate everything, hidden parameters included.
2. snapshot_device before touching anything, so the starting point is restorable.
3. Adjust with set_hidden_parameter or batch_set_hidden_parameters; keep changes small.
4. Compare against the snapshot; restore_snapshot if the result is worse.
5. When a combination works, save it with create_macro for live control.`,
					args["track_index"], args["device_index"]))
			},
		},
		{
			Name:        "mix_check",
			Description: "A quick mix review pass over the current session.",
			Render: func(args map[string]string) string {
				return strings.TrimSpace(`
Review the mix:
1. get_tracks, then get_track_info for each track that is not muted.
2. analyze_audio on the master, then per track for anything peaking.
3. Flag tracks whose volume differs by more than 6 dB from their group.
4. Suggest set_track_volume and set_track_pan moves, not structural edits.`)
			},
		},
	}
}
