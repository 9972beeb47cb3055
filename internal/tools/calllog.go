package tools

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
	"unicode/utf8"
)

const argsSummaryLimit = 200

// CallRecord is one dispatched tool call as the dashboard sees it.
type CallRecord struct {
	Tool        string        `json:"tool"`
	ArgsSummary string        `json:"args"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration"`
	// Outcome is "ok" or the error kind.
	Outcome string `json:"outcome"`
}

// CallLog is a fixed-capacity ring of recent calls plus per-tool
// counters. A plain mutex is plenty at dashboard refresh cadence.
type CallLog struct {
	mu     sync.Mutex
	buf    []CallRecord
	next   int
	full   bool
	counts map[string]int
}

func NewCallLog(capacity int) *CallLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &CallLog{
		buf:    make([]CallRecord, capacity),
		counts: map[string]int{},
	}
}

func (l *CallLog) Append(rec CallRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = rec
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.counts[rec.Tool]++
}

// Recent returns up to n records, newest first.
func (l *CallLog) Recent(n int) []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]CallRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// ToolCount pairs a tool name with its cumulative call count.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// Top returns the n most-called tools, count-descending then by name.
func (l *CallLog) Top(n int) []ToolCount {
	l.mu.Lock()
	out := make([]ToolCount, 0, len(l.counts))
	for tool, count := range l.counts {
		out = append(out, ToolCount{Tool: tool, Count: count})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tool < out[j].Tool
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// summarizeArgs renders arguments for the call log, truncated so one
// giant note array cannot bloat the ring.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "<unencodable>"
	}
	if len(data) > argsSummaryLimit {
		// Back up to a rune start so the cut never splits a multi-byte
		// character.
		cut := argsSummaryLimit
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		return string(data[:cut]) + "…"
	}
	return string(data)
}
