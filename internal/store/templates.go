package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// TemplateDevice is one step of an effect chain: which device to load
// and which parameters to set afterwards.
type TemplateDevice struct {
	URI                string             `json:"uri"`
	ParameterOverrides map[string]float64 `json:"parameter_overrides,omitempty"`
}

// ChainTemplate is an ordered device list reusable across sessions.
type ChainTemplate struct {
	Name    string           `json:"name"`
	Devices []TemplateDevice `json:"devices"`
}

// Templates is the effect-chain template store. Every mutation writes
// the whole collection back to its JSON file, and startup reloads it,
// so templates outlive the process.
type Templates struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	m  map[string]ChainTemplate
}

// NewTemplates creates the store backed by the given file. An empty
// path keeps templates in memory only.
func NewTemplates(path string, logger *slog.Logger) *Templates {
	return &Templates{
		path:   path,
		logger: logger.With("component", "templates"),
		m:      map[string]ChainTemplate{},
	}
}

// Load reads the template file if present. A missing file is a clean
// first run, not an error.
func (s *Templates) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read templates: %w", err)
	}
	var stored map[string]ChainTemplate
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse templates %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.m = stored
	s.mu.Unlock()
	s.logger.Info("effect-chain templates loaded", "count", len(stored), "path", s.path)
	return nil
}

// Save stores a template and writes through to disk.
func (s *Templates) Save(tpl ChainTemplate) error {
	if tpl.Name == "" {
		return daw.E(daw.KindInvalidInput, "template name must not be empty")
	}
	if len(tpl.Devices) == 0 {
		return daw.E(daw.KindInvalidInput, "template %q needs at least one device", tpl.Name)
	}
	for i, dev := range tpl.Devices {
		if dev.URI == "" {
			return daw.E(daw.KindInvalidInput, "template %q device %d has no uri", tpl.Name, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[tpl.Name] = cloneTemplate(tpl)
	return s.persistLocked()
}

func (s *Templates) Get(name string) (ChainTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.m[name]
	if !ok {
		return ChainTemplate{}, false
	}
	return cloneTemplate(tpl), true
}

// Delete removes a template and writes through to disk.
func (s *Templates) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[name]; !ok {
		return false, nil
	}
	delete(s.m, name)
	return true, s.persistLocked()
}

func (s *Templates) List() []ChainTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChainTemplate, 0, len(s.m))
	for _, tpl := range s.m {
		out = append(out, cloneTemplate(tpl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// persistLocked writes the collection via temp-file-plus-rename.
// Callers hold the mutex.
func (s *Templates) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("template dir: %w", err)
	}
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".templates-*.json")
	if err != nil {
		return fmt.Errorf("template temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write templates: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush templates: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("commit templates: %w", err)
	}
	return nil
}

func cloneTemplate(tpl ChainTemplate) ChainTemplate {
	devices := make([]TemplateDevice, len(tpl.Devices))
	for i, dev := range tpl.Devices {
		if dev.ParameterOverrides != nil {
			overrides := make(map[string]float64, len(dev.ParameterOverrides))
			for k, v := range dev.ParameterOverrides {
				overrides[k] = v
			}
			dev.ParameterOverrides = overrides
		}
		devices[i] = dev
	}
	tpl.Devices = devices
	return tpl
}
