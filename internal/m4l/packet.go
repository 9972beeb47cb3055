package m4l

import (
	"encoding/json"

	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/protocol"
)

// buildPacket encodes one bridge command as an OSC message. The final
// argument is always the request id; JSON-valued parameters travel as
// URL-safe unpadded base64 because the bridge mangles '+', '/' and '='
// in OSC symbols.
func buildPacket(commandType string, params map[string]any, requestID string) ([]byte, error) {
	p := paramReader{params: params}

	var (
		address string
		args    []protocol.OSCArg
	)

	switch commandType {
	case "ping":
		address = "/ping"

	case "discover_params":
		address = "/discover_params"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index")}

	case "get_hidden_params":
		address = "/get_hidden_params"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index")}

	case "set_hidden_param":
		address = "/set_hidden_param"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("parameter_index"), p.float("value"),
		}

	case "get_device_property":
		address = "/get_device_property"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), p.str("property_name")}

	case "set_device_property":
		address = "/set_device_property"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.str("property_name"), p.float("value"),
		}

	case "batch_set_hidden_params":
		address = "/batch_set_hidden_params"
		blob, err := encodeJSONArg(params["parameters"])
		if err != nil {
			return nil, err
		}
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), protocol.OSCString(blob)}

	case "get_cue_points":
		address = "/get_cue_points"

	case "jump_to_cue_point":
		address = "/jump_to_cue_point"
		args = []protocol.OSCArg{p.int("cue_point_index")}

	case "get_groove_pool":
		address = "/get_groove_pool"

	case "set_groove_properties":
		address = "/set_groove_properties"
		blob, err := encodeJSONArg(params["properties"])
		if err != nil {
			return nil, err
		}
		args = []protocol.OSCArg{p.int("groove_index"), protocol.OSCString(blob)}

	case "observe_property":
		address = "/observe_property"
		args = []protocol.OSCArg{p.str("lom_path"), p.str("property_name")}

	case "stop_observing":
		address = "/stop_observing"
		args = []protocol.OSCArg{p.str("lom_path"), p.str("property_name")}

	case "get_observed_changes":
		address = "/get_observed_changes"

	case "set_param_clean":
		address = "/set_param_clean"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("parameter_index"), p.float("value"),
		}

	case "analyze_audio":
		address = "/analyze_audio"
		args = []protocol.OSCArg{p.intDefault("track_index", -1)}

	case "analyze_spectrum":
		address = "/analyze_spectrum"

	case "analyze_cross_track":
		address = "/analyze_cross_track"
		args = []protocol.OSCArg{p.intDefault("track_index", 0), p.intDefault("wait_ms", 500)}

	case "get_app_version":
		address = "/get_app_version"

	case "get_automation_states":
		address = "/get_automation_states"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index")}

	case "discover_chains":
		address = "/discover_chains"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index")}
		if extra, _ := params["extra_path"].(string); extra != "" {
			args = append(args, protocol.OSCString(extra))
		}

	case "get_chain_device_params":
		address = "/get_chain_device_params"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("chain_index"), p.int("chain_device_index"),
		}

	case "set_chain_device_param":
		address = "/set_chain_device_param"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("chain_index"), p.int("chain_device_index"),
			p.int("parameter_index"), p.float("value"),
		}

	case "get_clip_notes_by_id":
		address = "/get_clip_notes_by_id"
		args = []protocol.OSCArg{p.int("track_index"), p.int("clip_index")}

	case "modify_clip_notes":
		address = "/modify_clip_notes"
		blob, err := encodeJSONArg(params["modifications"])
		if err != nil {
			return nil, err
		}
		args = []protocol.OSCArg{p.int("track_index"), p.int("clip_index"), protocol.OSCString(blob)}

	case "remove_clip_notes_by_id":
		address = "/remove_clip_notes_by_id"
		blob, err := encodeJSONArg(params["note_ids"])
		if err != nil {
			return nil, err
		}
		args = []protocol.OSCArg{p.int("track_index"), p.int("clip_index"), protocol.OSCString(blob)}

	case "get_chain_mixing":
		address = "/get_chain_mixing"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), p.int("chain_index")}

	case "set_chain_mixing":
		address = "/set_chain_mixing"
		blob, err := encodeJSONArg(params["properties"])
		if err != nil {
			return nil, err
		}
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("chain_index"), protocol.OSCString(blob),
		}

	case "device_ab_compare":
		address = "/device_ab_compare"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), p.str("action")}

	case "clip_scrub":
		address = "/clip_scrub"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("clip_index"),
			p.str("action"), p.floatDefault("beat_time", 0),
		}

	case "get_split_stereo":
		address = "/get_split_stereo"
		args = []protocol.OSCArg{p.int("track_index")}

	case "set_split_stereo":
		address = "/set_split_stereo"
		args = []protocol.OSCArg{p.int("track_index"), p.float("left"), p.float("right")}

	case "rack_insert_chain":
		address = "/rack_insert_chain"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), p.intDefault("chain_index", 0)}

	case "chain_insert_device":
		address = "/chain_insert_device_m4l"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"), p.int("chain_index"),
			p.str("device_uri"), p.intDefault("target_index", 0),
		}

	case "set_drum_chain_note":
		address = "/set_drum_chain_note"
		args = []protocol.OSCArg{
			p.int("track_index"), p.int("device_index"),
			p.int("chain_index"), p.int("note"),
		}

	case "get_take_lanes":
		address = "/get_take_lanes"
		args = []protocol.OSCArg{p.int("track_index")}

	case "rack_store_variation":
		address = "/rack_store_variation"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index")}

	case "rack_recall_variation":
		address = "/rack_recall_variation"
		args = []protocol.OSCArg{p.int("track_index"), p.int("device_index"), p.int("variation_index")}

	case "create_arrangement_midi_clip":
		address = "/create_arrangement_midi_clip_m4l"
		args = []protocol.OSCArg{p.int("track_index"), p.float("time"), p.float("length")}

	case "create_arrangement_audio_clip":
		address = "/create_arrangement_audio_clip_m4l"
		args = []protocol.OSCArg{p.int("track_index"), p.float("time"), p.float("length")}

	default:
		return nil, daw.E(daw.KindInvalidInput, "unknown bridge command %q", commandType)
	}

	if p.err != nil {
		return nil, p.err
	}
	args = append(args, protocol.OSCString(requestID))
	return protocol.BuildOSCMessage(address, args...)
}

// paramReader pulls typed values out of a params map, recording the
// first missing or mistyped field.
type paramReader struct {
	params map[string]any
	err    error
}

func (p *paramReader) int(key string) protocol.OSCArg {
	v, ok := asInt(p.params[key])
	if !ok && p.err == nil {
		p.err = daw.E(daw.KindInvalidInput, "parameter %q must be an integer", key)
	}
	return protocol.OSCInt(v)
}

func (p *paramReader) intDefault(key string, def int) protocol.OSCArg {
	if _, present := p.params[key]; !present {
		return protocol.OSCInt(def)
	}
	return p.int(key)
}

func (p *paramReader) float(key string) protocol.OSCArg {
	v, ok := asFloat(p.params[key])
	if !ok && p.err == nil {
		p.err = daw.E(daw.KindInvalidInput, "parameter %q must be a number", key)
	}
	return protocol.OSCFloat(v)
}

func (p *paramReader) floatDefault(key string, def float64) protocol.OSCArg {
	if _, present := p.params[key]; !present {
		return protocol.OSCFloat(def)
	}
	return p.float(key)
}

func (p *paramReader) str(key string) protocol.OSCArg {
	v, ok := p.params[key].(string)
	if !ok && p.err == nil {
		p.err = daw.E(daw.KindInvalidInput, "parameter %q must be a string", key)
	}
	return protocol.OSCString(v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// encodeJSONArg renders a value as compact JSON wrapped in URL-safe
// unpadded base64, the only alphabet that survives the bridge.
func encodeJSONArg(v any) (string, error) {
	if v == nil {
		return "", daw.E(daw.KindInvalidInput, "missing JSON parameter")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", daw.Wrap(daw.KindInvalidInput, err, "unencodable JSON parameter")
	}
	return protocol.EncodeBase64URL(data), nil
}
