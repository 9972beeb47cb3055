// Package daw holds the command model for the DAW-facing transports and
// the pipeline that serializes tool traffic onto them: tier-based pacing,
// idempotency policy, timeouts, and single-retry reconnect semantics.
package daw

import (
	"strings"
	"time"
)

// Command is one request to the DAW scripting endpoint. Params is opaque
// to the bridge except for tier and idempotency classification.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is the DAW's answer to a Command. Result is always a JSON
// object on this protocol; anything else fails frame decoding.
type Response struct {
	Status  string         `json:"status"`
	Result  map[string]any `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

// OK reports whether the DAW accepted the command.
func (r Response) OK() bool { return r.Status == "success" }

// Tier determines the settle delay applied after a command completes.
// No tier carries a pre-delay.
type Tier int

const (
	// TierInstant covers pure property setters; no settle delay.
	TierInstant Tier = iota
	// TierLight covers note/clip/automation edits; 50ms settle.
	TierLight
	// TierStructural covers create/delete/load operations; 100ms settle.
	TierStructural
)

// PostDelay is the settle time the pipeline applies after a command of
// this tier returns, before the next command may start on the transport.
func (t Tier) PostDelay() time.Duration {
	switch t {
	case TierLight:
		return 50 * time.Millisecond
	case TierStructural:
		return 100 * time.Millisecond
	default:
		return 0
	}
}

// Default command deadlines. Known-slow commands override these below;
// an explicit caller timeout overrides everything.
const (
	DefaultReadTimeout   = 10 * time.Second
	DefaultModifyTimeout = 15 * time.Second
)

// structuralCommands create or destroy entities in the DAW. They are
// tier 2 and, with few exceptions, non-idempotent.
var structuralCommands = map[string]bool{
	"create_midi_track":              true,
	"create_audio_track":             true,
	"create_return_track":            true,
	"create_midi_track_with_simpler": true,
	"create_scene":                   true,
	"create_clip":                    true,
	"create_take_lane":               true,
	"delete_track":                   true,
	"delete_scene":                   true,
	"delete_clip":                    true,
	"delete_device":                  true,
	"duplicate_track":                true,
	"duplicate_scene":                true,
	"duplicate_clip":                 true,
	"duplicate_clip_loop":            true,
	"duplicate_clip_region":          true,
	"duplicate_clip_to_arrangement":  true,
	"group_tracks":                   true,
	"load_instrument_or_effect":      true,
	"load_browser_item":              true,
	"load_sample":                    true,
	"insert_device":                  true,
	"freeze_track":                   true,
	"unfreeze_track":                 true,
	"audio_to_midi":                  true,
	"sliced_simpler_to_drum_rack":    true,
	"crop_clip":                      true,
}

// lightCommands edit existing content; 50ms settle delay.
var lightCommands = map[string]bool{
	"add_notes_to_clip":           true,
	"add_notes_extended":          true,
	"clear_clip_notes":            true,
	"remove_notes_range":          true,
	"quantize_clip_notes":         true,
	"transpose_clip_notes":        true,
	"create_clip_automation":      true,
	"create_track_automation":     true,
	"clear_clip_automation":       true,
	"clear_track_automation":      true,
	"add_warp_marker":             true,
	"move_warp_marker":            true,
	"remove_warp_marker":          true,
	"set_device_parameter":        true,
	"set_device_parameters_batch": true,
	"set_clip_loop_points":        true,
	"set_clip_start_end":          true,
	"set_warp_mode":               true,
	"apply_groove":                true,
	"set_groove_settings":         true,
	"set_song_scale":              true,
	"set_song_settings":           true,
	"insert_silence":              true,
	"delete_time":                 true,
	"duplicate_time":              true,
	"set_eq8_properties":          true,
	"set_simpler_properties":      true,
	"set_compressor_sidechain":    true,
	"set_hybrid_reverb_ir":        true,
	"manage_sample_slices":        true,
	"reverse_clip":                true,
	"set_clip_warp":               true,
}

// nonIdempotent commands duplicate an entity (or otherwise compound) when
// repeated, so the pipeline never retries them after a transport failure.
var nonIdempotent = map[string]bool{
	"create_midi_track":              true,
	"create_audio_track":             true,
	"create_return_track":            true,
	"create_midi_track_with_simpler": true,
	"create_scene":                   true,
	"create_clip":                    true,
	"create_take_lane":               true,
	"delete_track":                   true,
	"delete_scene":                   true,
	"delete_clip":                    true,
	"delete_device":                  true,
	"duplicate_track":                true,
	"duplicate_scene":                true,
	"duplicate_clip":                 true,
	"duplicate_clip_loop":            true,
	"duplicate_clip_region":          true,
	"duplicate_clip_to_arrangement":  true,
	"group_tracks":                   true,
	"load_instrument_or_effect":      true,
	"load_browser_item":              true,
	"load_sample":                    true,
	"insert_device":                  true,
	"add_notes_to_clip":              true,
	"add_notes_extended":             true,
	"add_warp_marker":                true,
	"insert_silence":                 true,
	"duplicate_time":                 true,
	"delete_time":                    true,
	"capture_midi":                   true,
	"tap_tempo":                      true,
	"undo":                           true,
	"redo":                           true,
	"audio_to_midi":                  true,
	"sliced_simpler_to_drum_rack":    true,
}

// slowTimeouts overrides the default deadline for commands that walk the
// browser, bounce audio, or otherwise take the DAW a long time.
var slowTimeouts = map[string]time.Duration{
	"get_browser_tree":            60 * time.Second,
	"get_browser_items_at_path":   30 * time.Second,
	"search_browser":              30 * time.Second,
	"get_user_library":            30 * time.Second,
	"get_user_folders":            20 * time.Second,
	"load_instrument_or_effect":   30 * time.Second,
	"load_browser_item":           30 * time.Second,
	"load_sample":                 30 * time.Second,
	"freeze_track":                60 * time.Second,
	"unfreeze_track":              60 * time.Second,
	"audio_to_midi":               60 * time.Second,
	"sliced_simpler_to_drum_rack": 30 * time.Second,
	"analyze_audio_clip":          30 * time.Second,
	"capture_midi":                20 * time.Second,
}

// TierFor classifies a command type. Read-only commands are instant;
// unknown modifying commands default to light so a new DAW-side handler
// still gets a settle delay.
func TierFor(commandType string) Tier {
	if structuralCommands[commandType] {
		return TierStructural
	}
	if lightCommands[commandType] {
		return TierLight
	}
	if IsReadOnly(commandType) {
		return TierInstant
	}
	if strings.HasPrefix(commandType, "set_") || isTransport(commandType) {
		return TierInstant
	}
	return TierLight
}

// IsIdempotent reports whether the pipeline may retry the command once
// after a connection-level failure.
func IsIdempotent(commandType string) bool {
	return !nonIdempotent[commandType]
}

// IsReadOnly reports whether the command only inspects DAW state.
func IsReadOnly(commandType string) bool {
	return strings.HasPrefix(commandType, "get_") ||
		strings.HasPrefix(commandType, "list_") ||
		commandType == "search_browser" ||
		commandType == "preview_browser_item"
}

// TimeoutFor picks the deadline for a command: explicit caller timeout,
// then the known-slow override, then the read/modify default.
func TimeoutFor(commandType string, explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}
	if d, ok := slowTimeouts[commandType]; ok {
		return d
	}
	if IsReadOnly(commandType) {
		return DefaultReadTimeout
	}
	return DefaultModifyTimeout
}

func isTransport(commandType string) bool {
	switch commandType {
	case "start_playback", "stop_playback", "continue_playing", "fire_clip",
		"stop_clip", "fire_scene", "select_scene", "select_track", "jump_to_cue",
		"set_metronome", "navigate_playback", "set_playback_position":
		return true
	}
	return false
}
