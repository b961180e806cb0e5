package system

import (
	"testing"
	"time"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase         { return r.phase }
func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"recycle", PhaseCleanup, &log})
	r.Register(recorder{"vehicles", PhaseUpdate, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"effects", PhaseUpdate, &log})

	r.Step(time.Millisecond)
	want := []string{"input", "vehicles", "effects", "recycle"}
	if len(log) != len(want) {
		t.Fatalf("ran %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order %v, want %v", log, want)
		}
	}
	if r.Tick() != 1 {
		t.Fatalf("tick = %d", r.Tick())
	}
}

func TestStepPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"flush", PhasePersist, &log})
	r.Register(recorder{"input", PhaseInput, &log})

	r.StepPhase(PhasePersist, 0)
	if len(log) != 1 || log[0] != "flush" {
		t.Fatalf("ran %v", log)
	}
	if r.Tick() != 0 {
		t.Fatalf("StepPhase advanced the tick")
	}
}
