package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNopMetrics_CountersWork(t *testing.T) {
	m := Nop()

	m.ToolExecutionCounter.WithLabelValues("set_tempo", "ok").Inc()
	m.ToolExecutionCounter.WithLabelValues("set_tempo", "ok").Inc()
	m.DawCommandCounter.WithLabelValues("0", "success").Inc()
	m.CatalogItems.Set(4211)

	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("set_tempo", "ok")); got != 2 {
		t.Errorf("tool counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DawCommandCounter.WithLabelValues("0", "success")); got != 1 {
		t.Errorf("daw command counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CatalogItems); got != 4211 {
		t.Errorf("catalog gauge = %v, want 4211", got)
	}
}

func TestNopMetrics_Isolated(t *testing.T) {
	// Two Nop sets must not collide; each has its own registry.
	a := Nop()
	b := Nop()
	a.ErrorCounter.WithLabelValues("pipeline", "timeout").Inc()
	if got := testutil.ToFloat64(b.ErrorCounter.WithLabelValues("pipeline", "timeout")); got != 0 {
		t.Errorf("metrics leaked across Nop instances: %v", got)
	}
}
