package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSplitReassemble_Identity(t *testing.T) {
	cases := []struct {
		name      string
		payload   string
		pieceSize int
	}{
		{"small single chunk", `{"status":"success"}`, 1500},
		{"exact boundary", strings.Repeat("a", 300), 100},
		{"uneven split", strings.Repeat("b", 305), 100},
		{"large discovery response", `{"parameters":[` + strings.Repeat(`{"n":"Macro"},`, 500) + `{"n":"last"}]}`, 1500},
		{"empty payload", "", 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := SplitChunks([]byte(tc.payload), tc.pieceSize)
			byIndex := make(map[int]string, len(chunks))
			for _, c := range chunks {
				if c.Total != len(chunks) {
					t.Errorf("chunk %d declares total %d, want %d", c.Index, c.Total, len(chunks))
				}
				byIndex[c.Index] = c.Data
			}
			out, err := ReassembleChunks(byIndex, len(chunks))
			if err != nil {
				t.Fatalf("reassemble: %v", err)
			}
			if !bytes.Equal(out, []byte(tc.payload)) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(tc.payload))
			}
		})
	}
}

func TestReassembleChunks_MissingIndices(t *testing.T) {
	chunks := SplitChunks([]byte(strings.Repeat("x", 500)), 100)
	byIndex := make(map[int]string)
	for _, c := range chunks {
		if c.Index == 1 || c.Index == 3 {
			continue
		}
		byIndex[c.Index] = c.Data
	}

	_, err := ReassembleChunks(byIndex, len(chunks))
	if err == nil {
		t.Fatal("expected error for missing chunks")
	}
	if !strings.Contains(err.Error(), "[1,3]") {
		t.Errorf("error should enumerate missing indices, got: %v", err)
	}

	if got := MissingIndices(byIndex, len(chunks)); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("MissingIndices = %v, want [1 3]", got)
	}
}

func TestChunkFromMap(t *testing.T) {
	env, err := ChunkFromMap(map[string]any{"_c": 2.0, "_t": 5.0, "_d": "cGllY2U"})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if env.Index != 2 || env.Total != 5 || env.Data != "cGllY2U" {
		t.Errorf("unexpected envelope: %+v", env)
	}

	if _, err := ChunkFromMap(map[string]any{"_c": 9.0, "_t": 5.0, "_d": ""}); err == nil {
		t.Error("expected range error for index >= total")
	}
}

func TestIsChunk(t *testing.T) {
	var decoded map[string]any
	raw := []byte(`{"_c":0,"_t":2,"_d":"abc"}`)
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if !IsChunk(decoded) {
		t.Error("chunk envelope not recognized")
	}
	if IsChunk(map[string]any{"status": "success"}) {
		t.Error("plain response misdetected as chunk")
	}
}
