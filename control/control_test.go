package control_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momentics/hioload-ut/control"
)

func TestMetricsCounters(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Inc("accepted")
	mr.Add("accepted", 2)
	mr.Inc("connected")
	mr.Set("node", "a")
	if got := mr.Counter("accepted"); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
	if got := mr.Counter("missing"); got != 0 {
		t.Errorf("Expected 0 for unknown counter, got %d", got)
	}
	if diff := cmp.Diff([]string{"accepted", "connected"}, mr.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	want := map[string]any{"accepted": int64(3), "connected": int64(1), "node": "a"}
	if diff := cmp.Diff(want, mr.GetSnapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if mr.Updated().IsZero() {
		t.Error("Updated should be set after a change")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	n := 0
	dp.RegisterProbe("calls", func() any { n++; return n })
	control.RegisterPlatformProbes(dp)
	state := dp.DumpState()
	if state["calls"] != 1 {
		t.Errorf("Expected probe to run once, got %v", state["calls"])
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Error("platform probes missing")
	}
	if names := dp.Names(); names[0] != "calls" {
		t.Errorf("Expected sorted names, got %v", names)
	}
}
