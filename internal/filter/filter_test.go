package filter

import (
	"testing"

	"github.com/tapdeck/tapdeck/internal/procs"
)

func snapshot() []procs.ProcessInfo {
	return []procs.ProcessInfo{
		{PID: 10, DisplayName: "Zoom", BundleID: "us.zoom.xos"},
		{PID: 20, DisplayName: "Slack", BundleID: "com.tinyspeck.slackmacgap"},
		{PID: 30, DisplayName: "Music", BundleID: "com.apple.Music"},
	}
}

func TestResolveExcludesUnselected(t *testing.T) {
	exclude, warnings := Resolve(Spec{Apps: []string{"Zoom"}}, snapshot())

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	want := []int32{20, 30}
	got := exclude.PIDs()
	if len(got) != len(want) {
		t.Fatalf("expected exclusion set %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected exclusion set %v, got %v", want, got)
		}
	}
	if exclude.Contains(10) {
		t.Fatal("selected app's pid must not be excluded")
	}
}

func TestResolveEmptySpecMeansGlobalCapture(t *testing.T) {
	exclude, warnings := Resolve(Spec{}, snapshot())

	if exclude.Len() != 0 {
		t.Fatalf("empty spec must produce an empty exclusion set, got %v", exclude.PIDs())
	}
	if len(warnings) != 0 {
		t.Fatalf("empty spec must not warn, got %v", warnings)
	}
}

func TestResolveUnmatchedAppWarns(t *testing.T) {
	exclude, warnings := Resolve(Spec{Apps: []string{"Teams"}}, snapshot())

	if exclude.Len() != len(snapshot()) {
		t.Fatalf("with no matching process every pid is excluded; got %v", exclude.PIDs())
	}
	if len(warnings) != 1 || warnings[0].App != "Teams" {
		t.Fatalf("expected one UnmatchedAppWarning for Teams, got %v", warnings)
	}
}

func TestResolveNameMatchIsCaseInsensitive(t *testing.T) {
	exclude, warnings := Resolve(Spec{Apps: []string{"zOOm"}}, snapshot())

	if exclude.Contains(10) {
		t.Fatal("case-insensitive name match should select Zoom")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestResolveBundleIdentifierMatch(t *testing.T) {
	exclude, warnings := Resolve(Spec{Apps: []string{"us.zoom.xos"}}, snapshot())

	if exclude.Contains(10) {
		t.Fatal("bundle identifier match should select Zoom")
	}
	if len(warnings) != 0 {
		t.Fatalf("bundle match must satisfy the spec entry, got warnings %v", warnings)
	}
	if !exclude.Contains(20) || !exclude.Contains(30) {
		t.Fatalf("unselected processes must stay excluded, got %v", exclude.PIDs())
	}
}

func TestResolveSharedDisplayNameSelectsAllInstances(t *testing.T) {
	processes := []procs.ProcessInfo{
		{PID: 10, DisplayName: "Zoom"},
		{PID: 11, DisplayName: "Zoom"},
		{PID: 20, DisplayName: "Slack"},
	}

	exclude, _ := Resolve(Spec{Apps: []string{"Zoom"}}, processes)

	if exclude.Contains(10) || exclude.Contains(11) {
		t.Fatalf("matching is per-name: both Zoom instances must be selected, got %v", exclude.PIDs())
	}
	if !exclude.Contains(20) {
		t.Fatal("Slack must be excluded")
	}
}

func TestResolveNonEmptySpecNeverSilentlyEmpty(t *testing.T) {
	// At least one process is unselected, so the exclusion set must be
	// non-empty. An always-empty set here is the defect this subsystem
	// exists to prevent.
	exclude, _ := Resolve(Spec{Apps: []string{"Zoom"}}, snapshot())
	if exclude.Len() == 0 {
		t.Fatal("non-empty spec with unselected processes produced an empty exclusion set")
	}
}
