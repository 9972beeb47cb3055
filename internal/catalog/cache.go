// Package catalog maintains a local cache of the DAW's browser content
// so name resolution and search stay off the DAW hot path. The cache is
// populated by a breadth-first walk through the command pipeline, kept
// as three consistent indices under one mutex, and persisted to disk as
// a gzip-compressed snapshot.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/ready"
)

// Item is one loadable (or browsable) entry of the DAW browser.
type Item struct {
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	IsLoadable bool     `json:"is_loadable"`
	Depth      int      `json:"depth"`
	Path       []string `json:"path"`
}

// Commander is the slice of the command pipeline the walker needs.
type Commander interface {
	SendCommand(ctx context.Context, cmd daw.Command, opts daw.SendOptions) (daw.Response, error)
}

const (
	// The walk never descends past this depth below a category root.
	maxWalkDepth = 4
	// Hard cap on total items; the walk truncates and logs beyond it.
	maxItems = 5000
)

// rootCategories is both the walk roots and the resolver's tie-break
// order: a name colliding across categories resolves to the earliest.
var rootCategories = []string{"instruments", "drums", "sounds", "audio_effects", "midi_effects"}

var categoryRank = func() map[string]int {
	m := make(map[string]int, len(rootCategories))
	for i, c := range rootCategories {
		m[c] = i
	}
	return m
}()

// Cache holds the three browser indices. They are rebuilt together from
// one flat list and swapped atomically, so readers always see a
// mutually consistent view.
type Cache struct {
	pipeline Commander
	dir      string
	signals  *ready.Signals
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu          sync.Mutex
	items       []Item
	byCategory  map[string][]Item
	byName      map[string]string
	populating  bool
	populatedAt time.Time
	source      string

	cronRunner *cron.Cron
}

// NewCache creates an empty (cold) cache. dir is where the persisted
// snapshot lives; empty disables persistence.
func NewCache(pipeline Commander, dir string, signals *ready.Signals, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		pipeline:   pipeline,
		dir:        dir,
		signals:    signals,
		logger:     logger.With("component", "catalog"),
		metrics:    metrics,
		byCategory: map[string][]Item{},
		byName:     map[string]string{},
	}
}

// Size returns the current item count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Items returns a copy of the flat list.
func (c *Cache) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// ByCategory returns a copy of the entries under one category root.
func (c *Cache) ByCategory(category string) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := c.byCategory[category]
	out := make([]Item, len(src))
	copy(out, src)
	sortByName(out)
	return out
}

// Search scans the flat list for items whose normalized name contains
// the normalized query. category filters when non-empty; limit caps the
// result (0 means 50).
func (c *Cache) Search(query, category string, limit int) []Item {
	if limit <= 0 {
		limit = 50
	}
	needle := Normalize(query)

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Item
	for _, item := range c.items {
		if category != "" && item.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(Normalize(item.Name), needle) {
			continue
		}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Status is the telemetry view of the cache.
type Status struct {
	Populated   bool      `json:"populated"`
	Populating  bool      `json:"populating"`
	Items       int       `json:"items"`
	Source      string    `json:"source,omitempty"`
	PopulatedAt time.Time `json:"populated_at,omitzero"`
}

func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Populated:   len(c.items) > 0,
		Populating:  c.populating,
		Items:       len(c.items),
		Source:      c.source,
		PopulatedAt: c.populatedAt,
	}
}

// Populate walks the DAW browser and commits fresh indices. Only one
// walk runs at a time; a call arriving mid-walk is a no-op. The walk
// goes category by category, breadth first, concurrency 1 through the
// pipeline, and stops at the depth and item caps.
func (c *Cache) Populate(ctx context.Context) error {
	c.mu.Lock()
	if c.populating {
		c.mu.Unlock()
		c.logger.Info("populate already in flight, skipping")
		return nil
	}
	c.populating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.populating = false
		c.mu.Unlock()
	}()

	start := time.Now()
	var items []Item
	truncated := false

walk:
	for _, category := range rootCategories {
		type node struct {
			path  []string
			depth int
		}
		queue := []node{{path: []string{category}, depth: 0}}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]

			children, err := c.fetch(ctx, n.path)
			if err != nil {
				// One unreadable folder should not abort the walk.
				c.logger.Warn("browser path unreadable, skipping",
					"path", strings.Join(n.path, "/"), "error", err)
				continue
			}
			for _, child := range children {
				if len(items) >= maxItems {
					truncated = true
					break walk
				}
				childPath := append(append([]string{}, n.path...), child.name)
				if child.uri != "" {
					items = append(items, Item{
						URI:        child.uri,
						Name:       child.name,
						Category:   category,
						IsLoadable: child.loadable,
						Depth:      n.depth + 1,
						Path:       childPath,
					})
				}
				if child.folder && n.depth+1 < maxWalkDepth {
					queue = append(queue, node{path: childPath, depth: n.depth + 1})
				}
			}
		}
	}

	c.metrics.CatalogPopulateCounter.WithLabelValues("daw", outcomeLabel(len(items) > 0)).Inc()
	if truncated {
		c.logger.Warn("browser walk truncated at item cap", "cap", maxItems)
	}
	if len(items) == 0 {
		c.logger.Warn("browser walk produced no items; keeping previous indices")
		return daw.E(daw.KindNotReady, "browser walk returned no items")
	}

	c.commit(items, "daw")
	c.logger.Info("catalog populated",
		"items", len(items), "truncated", truncated, "elapsed", time.Since(start))

	if c.dir != "" {
		if err := c.SaveToDisk(); err != nil {
			c.logger.Warn("could not persist catalog snapshot", "error", err)
		}
	}
	return nil
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "empty"
}

type browserChild struct {
	name     string
	uri      string
	folder   bool
	loadable bool
}

// fetch lists the browser children at one slash-joined path.
func (c *Cache) fetch(ctx context.Context, path []string) ([]browserChild, error) {
	resp, err := c.pipeline.SendCommand(ctx, daw.Command{
		Type:   "get_browser_items_at_path",
		Params: map[string]any{"path": strings.Join(path, "/")},
	}, daw.SendOptions{})
	if err != nil {
		return nil, err
	}
	raw, _ := resp.Result["items"].([]any)
	children := make([]browserChild, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		uri, _ := m["uri"].(string)
		folder, _ := m["is_folder"].(bool)
		loadable, _ := m["is_loadable"].(bool)
		children = append(children, browserChild{name: name, uri: uri, folder: folder, loadable: loadable})
	}
	return children, nil
}

// commit rebuilds all three indices from one flat list and swaps them in
// under the mutex. A non-empty commit fires the readiness event.
func (c *Cache) commit(items []Item, source string) {
	byCategory := make(map[string][]Item)
	for _, item := range items {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}
	byName := buildNameIndex(items)

	c.mu.Lock()
	c.items = items
	c.byCategory = byCategory
	c.byName = byName
	c.populatedAt = time.Now()
	c.source = source
	c.mu.Unlock()

	c.metrics.CatalogItems.Set(float64(len(items)))
	if len(items) > 0 {
		c.signals.CatalogPopulated.Set()
	}
}

// buildNameIndex maps normalized names to URIs. When names collide the
// shallower item wins, then the earlier category, then first seen.
func buildNameIndex(items []Item) map[string]string {
	type candidate struct {
		item Item
		pos  int
	}
	best := make(map[string]candidate)
	for i, item := range items {
		if !item.IsLoadable || item.URI == "" {
			continue
		}
		key := Normalize(item.Name)
		if key == "" {
			continue
		}
		cur, seen := best[key]
		if !seen || betterCandidate(item, i, cur.item, cur.pos) {
			best[key] = candidate{item: item, pos: i}
		}
	}
	out := make(map[string]string, len(best))
	for key, c := range best {
		out[key] = c.item.URI
	}
	return out
}

func betterCandidate(a Item, aPos int, b Item, bPos int) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	ar, br := categoryRank[a.Category], categoryRank[b.Category]
	if ar != br {
		return ar < br
	}
	return aPos < bPos
}

// Normalize lower-cases a name and strips punctuation, so "OTT!" and
// "ott" land on the same resolver key.
func Normalize(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Categories returns the known category roots in priority order.
func Categories() []string {
	out := make([]string, len(rootCategories))
	copy(out, rootCategories)
	return out
}

// ScheduleRefresh registers a background re-walk on a cron schedule.
// The cache never rescans on its own otherwise.
func (c *Cache) ScheduleRefresh(spec string) error {
	runner := cron.New()
	if _, err := runner.AddFunc(spec, func() {
		if err := c.Populate(context.Background()); err != nil {
			c.logger.Warn("scheduled catalog refresh failed", "error", err)
		}
	}); err != nil {
		return daw.Wrap(daw.KindInvalidInput, err, "bad refresh schedule %q", spec)
	}
	c.cronRunner = runner
	runner.Start()
	c.logger.Info("scheduled catalog refresh enabled", "schedule", spec)
	return nil
}

// Close stops the scheduled refresh, if any.
func (c *Cache) Close() {
	if c.cronRunner != nil {
		ctx := c.cronRunner.Stop()
		<-ctx.Done()
	}
}

// sortByName orders a copied slice for stable listings.
func sortByName(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}
