package catalog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/ready"
)

// fakeBrowser answers get_browser_items_at_path from a canned tree.
type fakeBrowser struct {
	mu    sync.Mutex
	tree  map[string][]any
	paths []string
	block chan struct{} // when non-nil, every call waits here first
}

func (f *fakeBrowser) SendCommand(ctx context.Context, cmd daw.Command, opts daw.SendOptions) (daw.Response, error) {
	if f.block != nil {
		<-f.block
	}
	path, _ := cmd.Params["path"].(string)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	items := f.tree[path]
	f.mu.Unlock()
	return daw.Response{Status: "success", Result: map[string]any{"items": items}}, nil
}

func (f *fakeBrowser) requestedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

func entry(name, uri string, folder, loadable bool) map[string]any {
	return map[string]any{"name": name, "uri": uri, "is_folder": folder, "is_loadable": loadable}
}

func newTestCache(t *testing.T, pipeline Commander, dir string) (*Cache, *ready.Signals) {
	t.Helper()
	signals := &ready.Signals{}
	c := NewCache(pipeline, dir, signals, slog.New(slog.DiscardHandler), observability.Nop())
	t.Cleanup(c.Close)
	return c, signals
}

func sampleTree() map[string][]any {
	return map[string][]any{
		"instruments": {
			entry("Synths", "", true, false),
			entry("Operator", "device:operator", false, true),
		},
		"instruments/Synths": {
			entry("Wavetable", "device:wavetable", false, true),
			entry("Analog", "device:analog", false, true),
		},
		"drums": {
			entry("Drum Rack", "device:drumrack", false, true),
		},
		"sounds": {},
		"audio_effects": {
			entry("Reverb", "device:reverb", false, true),
			// Same name as the instruments entry but not shallower.
			entry("Wavetable", "device:fx-wavetable", false, true),
		},
		"midi_effects": {
			entry("Arpeggiator", "device:arp", false, true),
		},
	}
}

func TestPopulate_BuildsConsistentIndices(t *testing.T) {
	f := &fakeBrowser{tree: sampleTree()}
	c, signals := newTestCache(t, f, "")

	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := c.Size(); got != 7 {
		t.Fatalf("size = %d, want 7", got)
	}
	if !signals.CatalogPopulated.IsSet() {
		t.Error("non-empty populate must fire the readiness event")
	}

	inst := c.ByCategory("instruments")
	if len(inst) != 3 {
		t.Fatalf("instruments = %d items: %+v", len(inst), inst)
	}
	// Listings come back name-sorted.
	for i := 1; i < len(inst); i++ {
		if inst[i-1].Name > inst[i].Name {
			t.Errorf("category listing not sorted: %q > %q", inst[i-1].Name, inst[i].Name)
		}
	}

	// Every flat item with a category appears in that category's index.
	for _, item := range c.Items() {
		found := false
		for _, cat := range c.ByCategory(item.Category) {
			if cat.URI == item.URI {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("item %q missing from category index %q", item.Name, item.Category)
		}
	}

	// Folders without a URI are browsable context, not loadable items.
	for _, item := range c.Items() {
		if item.URI == "" {
			t.Errorf("item with empty uri leaked into the flat list: %+v", item)
		}
	}
}

func TestPopulate_NameCollisionPriority(t *testing.T) {
	f := &fakeBrowser{tree: sampleTree()}
	c, _ := newTestCache(t, f, "")
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	// "Wavetable" exists at depth 2 under instruments and depth 1 under
	// audio_effects: the shallower entry wins regardless of category order.
	if got := c.Resolve("Wavetable", 0); got != "device:fx-wavetable" {
		t.Errorf("Resolve(Wavetable) = %q, want the shallower device:fx-wavetable", got)
	}
	if got := c.Resolve("operator", 0); got != "device:operator" {
		t.Errorf("Resolve(operator) = %q", got)
	}
	// Punctuation and case are stripped before lookup.
	if got := c.Resolve("DRUM-rack!", 0); got != "device:drumrack" {
		t.Errorf("Resolve(DRUM-rack!) = %q", got)
	}
}

func TestPopulate_DepthCap(t *testing.T) {
	tree := map[string][]any{}
	for _, cat := range Categories() {
		tree[cat] = nil
	}
	// A folder chain deeper than the walk limit.
	tree["instruments"] = []any{entry("L1", "", true, false)}
	tree["instruments/L1"] = []any{entry("L2", "", true, false)}
	tree["instruments/L1/L2"] = []any{entry("L3", "", true, false)}
	tree["instruments/L1/L2/L3"] = []any{entry("L4", "", true, false)}
	tree["instruments/L1/L2/L3/L4"] = []any{entry("Too Deep", "device:toodeep", false, true)}
	tree["drums"] = []any{entry("Kit", "device:kit", false, true)}

	f := &fakeBrowser{tree: tree}
	c, _ := newTestCache(t, f, "")
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	for _, path := range f.requestedPaths() {
		if n := len(strings.Split(path, "/")); n > maxWalkDepth {
			t.Errorf("walk descended to %q (%d segments), cap is %d", path, n, maxWalkDepth)
		}
	}
	if got := c.Resolve("Too Deep", 0); got != "Too Deep" {
		t.Errorf("item beyond the depth cap should not resolve, got %q", got)
	}
}

func TestPopulate_ItemCap(t *testing.T) {
	many := make([]any, maxItems+500)
	for i := range many {
		many[i] = entry("Preset "+string(rune('A'+i%26))+"-"+time.Duration(i).String(),
			"query:preset"+time.Duration(i).String(), false, true)
	}
	tree := map[string][]any{"instruments": many}
	for _, cat := range Categories()[1:] {
		tree[cat] = nil
	}
	f := &fakeBrowser{tree: tree}
	c, _ := newTestCache(t, f, "")
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := c.Size(); got != maxItems {
		t.Errorf("size = %d, want truncation at %d", got, maxItems)
	}
}

func TestPopulate_SingleFlight(t *testing.T) {
	f := &fakeBrowser{tree: sampleTree(), block: make(chan struct{})}
	c, _ := newTestCache(t, f, "")

	done := make(chan error, 1)
	go func() { done <- c.Populate(context.Background()) }()

	// Wait for the walk to reach its first blocked fetch.
	deadline := time.Now().Add(2 * time.Second)
	for !c.Status().Populating {
		if time.Now().After(deadline) {
			t.Fatal("walk never started")
		}
		time.Sleep(time.Millisecond)
	}

	// A second populate during the walk is a no-op, not a parallel scan.
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("overlapping populate should no-op: %v", err)
	}

	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := c.Size(); got != 7 {
		t.Errorf("size = %d after single walk, want 7", got)
	}
}

func TestPopulate_EmptyWalkKeepsPreviousIndices(t *testing.T) {
	f := &fakeBrowser{tree: sampleTree()}
	c, _ := newTestCache(t, f, "")
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	f.mu.Lock()
	f.tree = map[string][]any{}
	f.mu.Unlock()

	err := c.Populate(context.Background())
	if daw.KindOf(err) != daw.KindNotReady {
		t.Fatalf("empty walk error kind = %v, want not_ready", daw.KindOf(err))
	}
	if got := c.Size(); got != 7 {
		t.Errorf("empty rescan dropped the previous indices: size = %d", got)
	}
}

func TestPopulate_CountsRunsBySourceAndOutcome(t *testing.T) {
	m := observability.Nop()
	f := &fakeBrowser{tree: sampleTree()}
	c := NewCache(f, "", &ready.Signals{}, slog.New(slog.DiscardHandler), m)
	t.Cleanup(c.Close)

	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := testutil.ToFloat64(m.CatalogPopulateCounter.WithLabelValues("daw", "success")); got != 1 {
		t.Errorf("daw/success count = %v, want 1", got)
	}

	f.mu.Lock()
	f.tree = map[string][]any{}
	f.mu.Unlock()
	_ = c.Populate(context.Background())
	if got := testutil.ToFloat64(m.CatalogPopulateCounter.WithLabelValues("daw", "empty")); got != 1 {
		t.Errorf("daw/empty count = %v, want 1", got)
	}
}

func TestLoadFromDisk_CountsDiskRestore(t *testing.T) {
	dir := t.TempDir()
	f := &fakeBrowser{tree: sampleTree()}
	c, _ := newTestCache(t, f, dir)
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	m := observability.Nop()
	restored := NewCache(nil, dir, &ready.Signals{}, slog.New(slog.DiscardHandler), m)
	t.Cleanup(restored.Close)
	if err := restored.LoadFromDisk(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := testutil.ToFloat64(m.CatalogPopulateCounter.WithLabelValues("disk", "success")); got != 1 {
		t.Errorf("disk/success count = %v, want 1", got)
	}
}

func TestSearch(t *testing.T) {
	f := &fakeBrowser{tree: sampleTree()}
	c, _ := newTestCache(t, f, "")
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	if got := c.Search("wave", "", 0); len(got) != 2 {
		t.Errorf("Search(wave) = %d hits, want 2", len(got))
	}
	if got := c.Search("wave", "instruments", 0); len(got) != 1 || got[0].URI != "device:wavetable" {
		t.Errorf("category-filtered search = %+v", got)
	}
	if got := c.Search("", "", 3); len(got) != 3 {
		t.Errorf("limit not applied: %d hits", len(got))
	}
	if got := c.Search("no such device", "", 0); len(got) != 0 {
		t.Errorf("miss returned %d hits", len(got))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := &fakeBrowser{tree: sampleTree()}
	c, _ := newTestCache(t, f, dir)
	if err := c.Populate(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	// Populate with a catalog dir persists as a side effect; a fresh
	// cache must come up warm from disk alone.
	restored, signals := newTestCache(t, nil, dir)
	if err := restored.LoadFromDisk(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := restored.Size(); got != 7 {
		t.Errorf("restored size = %d, want 7", got)
	}
	if !signals.CatalogPopulated.IsSet() {
		t.Error("disk restore must fire the readiness event")
	}
	if got := restored.Resolve("analog", 0); got != "device:analog" {
		t.Errorf("Resolve after restore = %q", got)
	}
	if st := restored.Status(); st.Source != "disk" {
		t.Errorf("source = %q, want disk", st.Source)
	}
}

func TestLoadFromDisk_RejectsStaleAndMissing(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestCache(t, nil, dir)

	err := c.LoadFromDisk()
	if daw.KindOf(err) != daw.KindNotReady {
		t.Fatalf("missing snapshot kind = %v, want not_ready", daw.KindOf(err))
	}

	writeSnapshot(t, dir, snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().Add(-8 * 24 * time.Hour),
		Items:   []Item{{URI: "device:old", Name: "Old", Category: "instruments", IsLoadable: true, Depth: 1}},
	})
	err = c.LoadFromDisk()
	if daw.KindOf(err) != daw.KindNotReady || !strings.Contains(err.Error(), "stale") {
		t.Fatalf("stale snapshot: %v", err)
	}

	writeSnapshot(t, dir, snapshot{
		Version: snapshotVersion + 1,
		SavedAt: time.Now(),
		Items:   []Item{{URI: "device:new", Name: "New", Category: "instruments", IsLoadable: true, Depth: 1}},
	})
	if err := c.LoadFromDisk(); err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("wrong-version snapshot: %v", err)
	}
	if c.Size() != 0 {
		t.Error("rejected snapshots must not populate the cache")
	}
}

func writeSnapshot(t *testing.T, dir string, snap snapshot) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, snapshotName))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestResolve_PassThrough(t *testing.T) {
	c, _ := newTestCache(t, nil, "")

	// URIs bypass the catalog entirely, even when cold.
	if got := c.Resolve("query:Synths#Operator", 0); got != "query:Synths#Operator" {
		t.Errorf("uri pass-through = %q", got)
	}

	// A cold cache waits at most the caller timeout, then passes through.
	start := time.Now()
	if got := c.Resolve("Wavetable", 150*time.Millisecond); got != "Wavetable" {
		t.Errorf("cold resolve = %q, want pass-through", got)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Errorf("cold resolve waited %v, want ~150ms", elapsed)
	}

	// Once the event fires mid-wait, resolution proceeds immediately.
	go func() {
		time.Sleep(50 * time.Millisecond)
		c.commit([]Item{{URI: "device:wavetable", Name: "Wavetable", Category: "instruments", IsLoadable: true, Depth: 1}}, "test")
	}()
	start = time.Now()
	if got := c.Resolve("Wavetable", 5*time.Second); got != "device:wavetable" {
		t.Errorf("resolve after populate = %q", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("resolve blocked %v after the event fired", elapsed)
	}

	// Unknown names pass through so the DAW reports the real error.
	if got := c.Resolve("No Such Device", time.Second); got != "No Such Device" {
		t.Errorf("miss = %q, want pass-through", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Wavetable", "wavetable"},
		{"Drum-Rack!", "drumrack"},
		{"  EQ   Eight  ", "eq eight"},
		{"OTT", "ott"},
		{"Glue Compressor", "glue compressor"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
