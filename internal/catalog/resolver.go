package catalog

import (
	"strings"
	"time"
)

// DefaultResolveTimeout bounds how long a handler waits for the first
// populate before falling back to pass-through.
const DefaultResolveTimeout = 5 * time.Second

// uriSchemes are the prefixes of identifiers the DAW accepts directly.
// Input carrying one of these bypasses the name index entirely.
var uriSchemes = []string{
	"query:", "device:", "view:", "userlibrary:", "packs:", "browse:",
}

// LooksLikeURI reports whether the input is already a catalog identifier
// rather than a human name.
func LooksLikeURI(s string) bool {
	lower := strings.ToLower(s)
	for _, scheme := range uriSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// Resolve turns a human device name into a catalog URI. URIs pass
// through unchanged. For names, it waits up to timeout for the catalog
// to be populated; when the catalog stays cold, or the name is unknown,
// the input passes through unchanged and the DAW gets the final say.
// The wait never exceeds the caller's timeout.
func (c *Cache) Resolve(nameOrURI string, timeout time.Duration) string {
	if nameOrURI == "" || LooksLikeURI(nameOrURI) {
		return nameOrURI
	}
	if !c.signals.CatalogPopulated.Wait(timeout) {
		c.logger.Warn("catalog not populated within resolve timeout, passing name through",
			"name", nameOrURI, "timeout", timeout)
		return nameOrURI
	}

	key := Normalize(nameOrURI)
	c.mu.Lock()
	uri, ok := c.byName[key]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("name not in catalog, passing through", "name", nameOrURI)
		return nameOrURI
	}
	return uri
}
