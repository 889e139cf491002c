package tap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tapdeck/tapdeck/internal/filter"
)

func excludeSet(pids ...int32) filter.ExcludeSet {
	set := make(filter.ExcludeSet, len(pids))
	for _, pid := range pids {
		set[pid] = struct{}{}
	}
	return set
}

func TestBuildEncodesEveryMember(t *testing.T) {
	desc, err := Build(excludeSet(20, 30, 10))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer desc.Release()

	got := desc.ExcludedPIDs()
	want := []int32{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// The native payload itself must carry the full set: a descriptor whose
	// wire form has an empty exclusion list is a silent no-op.
	var payload struct {
		Version      int     `json:"version"`
		Mode         string  `json:"mode"`
		ExcludedPIDs []int32 `json:"excluded_pids"`
	}
	if err := json.Unmarshal(desc.Payload(), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if len(payload.ExcludedPIDs) != 3 {
		t.Fatalf("payload encodes %d of 3 pids", len(payload.ExcludedPIDs))
	}
	if payload.Mode != "global-exclude" {
		t.Fatalf("unexpected payload mode %q", payload.Mode)
	}
}

func TestBuildNonEmptySetProducesNonEmptyPayload(t *testing.T) {
	desc, err := Build(excludeSet(42))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer desc.Release()

	if len(desc.ExcludedPIDs()) == 0 {
		t.Fatal("non-empty exclusion set produced a descriptor with no exclusions")
	}
}

func TestBuildEmptySetIsGlobalCapture(t *testing.T) {
	desc, err := Build(nil)
	if err != nil {
		t.Fatalf("build of empty set failed: %v", err)
	}
	defer desc.Release()

	if len(desc.ExcludedPIDs()) != 0 {
		t.Fatalf("empty set must build a no-exclusion descriptor, got %v", desc.ExcludedPIDs())
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	set := excludeSet(5, 7, 9)

	first, err := Build(set)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer first.Release()

	second, err := Build(set)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	defer second.Release()

	if !first.SameExclusions(second) {
		t.Fatalf("two builds from one set diverged: %v vs %v",
			first.ExcludedPIDs(), second.ExcludedPIDs())
	}
}

func TestBuildRejectsInvalidPID(t *testing.T) {
	_, err := Build(excludeSet(10, -1))
	if err == nil {
		t.Fatal("expected build to fail for invalid pid")
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected a BuildError, got %T: %v", err, err)
	}
	if buildErr.PID != -1 {
		t.Fatalf("expected the failing pid to be named, got %d", buildErr.PID)
	}
}

func TestReleaseIsIdempotentAndCounted(t *testing.T) {
	before := LiveCount()

	desc, err := Build(excludeSet(1))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if LiveCount() != before+1 {
		t.Fatalf("expected live count %d after build, got %d", before+1, LiveCount())
	}

	desc.Release()
	if !desc.Released() {
		t.Fatal("descriptor should report released")
	}
	if LiveCount() != before {
		t.Fatalf("expected live count %d after release, got %d", before, LiveCount())
	}

	// Second release must not double-decrement.
	desc.Release()
	if LiveCount() != before {
		t.Fatalf("double release changed live count to %d", LiveCount())
	}
}
