package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/haasonsaas/livebridge/internal/daw"
)

func newTestTemplates(t *testing.T) (*Templates, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.json")
	return NewTemplates(path, slog.New(slog.DiscardHandler)), path
}

func TestTemplates_SaveLoadRoundTrip(t *testing.T) {
	s, path := newTestTemplates(t)
	tpl := ChainTemplate{
		Name: "vocal-chain",
		Devices: []TemplateDevice{
			{URI: "device:eq-eight", ParameterOverrides: map[string]float64{"HighCut": 0.8}},
			{URI: "device:compressor", ParameterOverrides: map[string]float64{"Ratio": 0.3, "Threshold": 0.5}},
			{URI: "device:reverb"},
		},
	}
	if err := s.Save(tpl); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A fresh store backed by the same file sees the same template.
	reloaded := NewTemplates(path, slog.New(slog.DiscardHandler))
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := reloaded.Get("vocal-chain")
	if !ok {
		t.Fatal("template missing after reload")
	}
	if !reflect.DeepEqual(got, tpl) {
		t.Errorf("round trip changed the template:\n got %+v\nwant %+v", got, tpl)
	}
}

func TestTemplates_DeleteWritesThrough(t *testing.T) {
	s, path := newTestTemplates(t)
	if err := s.Save(ChainTemplate{Name: "x", Devices: []TemplateDevice{{URI: "device:gate"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := s.Delete("x")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if removed, err := s.Delete("x"); err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}

	reloaded := NewTemplates(path, slog.New(slog.DiscardHandler))
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := reloaded.Get("x"); ok {
		t.Error("deleted template survived on disk")
	}
}

func TestTemplates_Validation(t *testing.T) {
	s, _ := newTestTemplates(t)
	bad := []ChainTemplate{
		{Name: "", Devices: []TemplateDevice{{URI: "device:x"}}},
		{Name: "empty"},
		{Name: "no-uri", Devices: []TemplateDevice{{URI: ""}}},
	}
	for _, tpl := range bad {
		if err := s.Save(tpl); daw.KindOf(err) != daw.KindInvalidInput {
			t.Errorf("Save(%q) error kind = %v, want invalid_input", tpl.Name, daw.KindOf(err))
		}
	}
}

func TestTemplates_MissingFileIsCleanStart(t *testing.T) {
	s, path := newTestTemplates(t)
	if err := s.Load(); err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if len(s.List()) != 0 {
		t.Error("fresh store should be empty")
	}

	// A corrupt file is a real error, not silently ignored.
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Load(); err == nil {
		t.Error("corrupt template file should fail the load")
	}
}

func TestTemplates_ReturnedCopiesAreIsolated(t *testing.T) {
	s, _ := newTestTemplates(t)
	if err := s.Save(ChainTemplate{
		Name:    "iso",
		Devices: []TemplateDevice{{URI: "device:delay", ParameterOverrides: map[string]float64{"Feedback": 0.5}}},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.Get("iso")
	got.Devices[0].ParameterOverrides["Feedback"] = 0.99

	again, _ := s.Get("iso")
	if again.Devices[0].ParameterOverrides["Feedback"] != 0.5 {
		t.Error("stored template mutated through a returned copy")
	}
}
