package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ChunkEnvelope is the bridge's unit of large-response transport. Each
// datagram carries {_c: index, _t: total, _d: url-safe base64 piece};
// the pieces concatenate, in index order, to the original JSON text.
type ChunkEnvelope struct {
	Index int    `json:"_c"`
	Total int    `json:"_t"`
	Data  string `json:"_d"`
}

// IsChunk reports whether a decoded bridge payload is a chunk envelope.
func IsChunk(raw map[string]any) bool {
	_, c := raw["_c"]
	_, t := raw["_t"]
	return c && t
}

// ChunkFromMap converts a decoded generic payload into a ChunkEnvelope.
func ChunkFromMap(raw map[string]any) (ChunkEnvelope, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return ChunkEnvelope{}, err
	}
	var env ChunkEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ChunkEnvelope{}, fmt.Errorf("protocol: bad chunk envelope: %w", err)
	}
	if env.Total <= 0 || env.Index < 0 || env.Index >= env.Total {
		return ChunkEnvelope{}, fmt.Errorf("protocol: chunk index %d out of range (total %d)", env.Index, env.Total)
	}
	return env, nil
}

// SplitChunks splits a JSON payload into chunk envelopes of at most
// pieceSize payload bytes each. Used by tests and the loopback fake
// bridge; the production sender lives in the DAW-side device.
func SplitChunks(payload []byte, pieceSize int) []ChunkEnvelope {
	if pieceSize <= 0 {
		pieceSize = 1500
	}
	var chunks []ChunkEnvelope
	for start := 0; start < len(payload); start += pieceSize {
		end := start + pieceSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, ChunkEnvelope{
			Index: len(chunks),
			Data:  EncodeBase64URL(payload[start:end]),
		})
	}
	if len(chunks) == 0 {
		chunks = []ChunkEnvelope{{Index: 0, Data: ""}}
	}
	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// ReassembleChunks decodes each collected piece and concatenates them in
// index order. The chunks map must hold exactly total entries keyed
// 0..total-1; MissingIndices reports the gap otherwise.
func ReassembleChunks(chunks map[int]string, total int) ([]byte, error) {
	if missing := MissingIndices(chunks, total); len(missing) > 0 {
		return nil, fmt.Errorf("protocol: reassembly incomplete, missing chunks %s (%d/%d received)",
			formatIndices(missing), len(chunks), total)
	}
	var out []byte
	for i := 0; i < total; i++ {
		piece, err := DecodeBase64URL(chunks[i])
		if err != nil {
			return nil, fmt.Errorf("protocol: chunk %d undecodable: %w", i, err)
		}
		out = append(out, piece...)
	}
	return out, nil
}

// MissingIndices returns the sorted chunk indices absent from chunks.
func MissingIndices(chunks map[int]string, total int) []int {
	var missing []int
	for i := 0; i < total; i++ {
		if _, ok := chunks[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

func formatIndices(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
