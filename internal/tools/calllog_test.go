package tools

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestCallLog_RingAndCounts(t *testing.T) {
	l := NewCallLog(3)
	for i := 0; i < 5; i++ {
		l.Append(CallRecord{Tool: "get_session_info", Start: time.Now(), Outcome: "ok"})
	}
	l.Append(CallRecord{Tool: "create_clip", Start: time.Now(), Outcome: "daw_reported"})

	recent := l.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("recent = %d records, want the ring capacity 3", len(recent))
	}
	if recent[0].Tool != "create_clip" {
		t.Errorf("newest record = %q, want create_clip", recent[0].Tool)
	}

	top := l.Top(1)
	if len(top) != 1 || top[0].Tool != "get_session_info" || top[0].Count != 5 {
		t.Errorf("top = %+v; counts must survive ring eviction", top)
	}
}

func TestSummarizeArgs_TruncatesOnRuneBoundary(t *testing.T) {
	// Pad shifts the multi-byte run across every alignment of the cut
	// point, so one of these would split a rune with a byte-offset cut.
	for pad := 0; pad < 4; pad++ {
		args := map[string]any{
			"name": strings.Repeat(" ", pad) + strings.Repeat("ü", argsSummaryLimit),
		}
		got := summarizeArgs(args)
		if !utf8.ValidString(got) {
			t.Errorf("pad %d: summary is not valid UTF-8: %q", pad, got)
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("pad %d: truncated summary missing ellipsis: %q", pad, got)
		}
		if n := len(got) - len("…"); n > argsSummaryLimit {
			t.Errorf("pad %d: summary is %d bytes, limit %d", pad, n, argsSummaryLimit)
		}
	}
}

func TestSummarizeArgs_ShortArgsUnchanged(t *testing.T) {
	if got := summarizeArgs(nil); got != "{}" {
		t.Errorf("empty args = %q, want {}", got)
	}
	if got := summarizeArgs(map[string]any{"tempo": 120}); got != `{"tempo":120}` {
		t.Errorf("short args = %q", got)
	}
}
