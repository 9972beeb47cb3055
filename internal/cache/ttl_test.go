package cache

import (
	"testing"
	"time"
)

func TestTTL_HitWithinWindow(t *testing.T) {
	c := New[string](Options{TTL: 5 * time.Second})
	now := time.Now()

	c.PutAt("ping", "2.1.0", now)

	got, ok := c.GetAt("ping", now.Add(4*time.Second))
	if !ok || got != "2.1.0" {
		t.Errorf("expected hit within TTL, got %q ok=%v", got, ok)
	}
}

func TestTTL_ExpiresAfterWindow(t *testing.T) {
	c := New[string](Options{TTL: 5 * time.Second})
	now := time.Now()

	c.PutAt("ping", "2.1.0", now)

	if _, ok := c.GetAt("ping", now.Add(5*time.Second)); ok {
		t.Error("entry should have expired at exactly TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not dropped, len=%d", c.Len())
	}
}

func TestTTL_ZeroTTLNeverExpires(t *testing.T) {
	c := New[float64](Options{})
	now := time.Now()

	c.PutAt("display:Macro 1:50%", 0.5, now)

	got, ok := c.GetAt("display:Macro 1:50%", now.Add(24*time.Hour))
	if !ok || got != 0.5 {
		t.Errorf("zero-TTL entry vanished: %v ok=%v", got, ok)
	}
}

func TestTTL_MaxSizeEvictsOldest(t *testing.T) {
	c := New[int](Options{MaxSize: 2})
	now := time.Now()

	c.PutAt("a", 1, now)
	c.PutAt("b", 2, now.Add(time.Second))
	c.PutAt("c", 3, now.Add(2*time.Second))

	if _, ok := c.GetAt("a", now.Add(3*time.Second)); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.GetAt("c", now.Add(3*time.Second)); !ok {
		t.Error("newest entry missing after eviction")
	}
}

func TestTTL_EmptyKeyIgnored(t *testing.T) {
	c := New[int](Options{})
	c.Put("", 1)
	if c.Len() != 0 {
		t.Error("empty key should not be stored")
	}
	if _, ok := c.Get(""); ok {
		t.Error("empty key should never hit")
	}
}
