// Package filter maps user-selected application names onto the concrete
// process-exclusion set a capture tap receives.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tapdeck/tapdeck/internal/procs"
)

// Spec is the caller-owned list of application display names to keep in a
// capture. It is immutable for the lifetime of one session. An empty Spec
// means no filtering: full system capture.
type Spec struct {
	Apps []string
}

// Empty reports whether the spec selects no applications.
func (s Spec) Empty() bool { return len(s.Apps) == 0 }

// ExcludeSet is the set of PIDs deliberately left out of a capture tap.
// Derived once per session start, never mutated afterwards.
type ExcludeSet map[int32]struct{}

// Len returns the number of excluded PIDs.
func (e ExcludeSet) Len() int { return len(e) }

// Contains reports whether pid is excluded.
func (e ExcludeSet) Contains(pid int32) bool {
	_, ok := e[pid]
	return ok
}

// PIDs returns the excluded PIDs in ascending order.
func (e ExcludeSet) PIDs() []int32 {
	pids := make([]int32, 0, len(e))
	for pid := range e {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// UnmatchedAppWarning is advisory: a selected application had no matching
// process at resolution time, usually because it is not currently producing
// audio. It never fails resolution.
type UnmatchedAppWarning struct {
	App string
}

func (w UnmatchedAppWarning) String() string {
	return fmt.Sprintf("no audio process matched selected app %q; it may not be playing audio", w.App)
}

// Resolve computes the exclusion set for one session start: every process
// not selected by the spec is excluded. Selection matches the display name
// case-insensitively; a bundle identifier match is accepted as a
// higher-confidence alternative (display names are fragile against
// localization and rebranding). Matching is per-name, so two processes
// sharing a display name are selected together.
//
// An empty spec selects nothing and excludes nothing: unfiltered capture.
func Resolve(spec Spec, processes []procs.ProcessInfo) (ExcludeSet, []UnmatchedAppWarning) {
	exclude := make(ExcludeSet)
	if spec.Empty() {
		return exclude, nil
	}

	matched := make(map[string]bool, len(spec.Apps))
	wanted := make([]string, len(spec.Apps))
	for i, app := range spec.Apps {
		wanted[i] = strings.ToLower(strings.TrimSpace(app))
	}

	for _, p := range processes {
		entry, selected := matchProcess(p, wanted)
		if selected {
			matched[entry] = true
			continue
		}
		exclude[p.PID] = struct{}{}
	}

	var warnings []UnmatchedAppWarning
	for i, entry := range wanted {
		if !matched[entry] {
			warnings = append(warnings, UnmatchedAppWarning{App: spec.Apps[i]})
		}
	}
	return exclude, warnings
}

// matchProcess tests one process against the normalized spec entries.
// Bundle identifier wins over display name when both could match.
func matchProcess(p procs.ProcessInfo, wanted []string) (string, bool) {
	bundle := strings.ToLower(p.BundleID)
	name := strings.ToLower(strings.TrimSpace(p.DisplayName))

	if bundle != "" {
		for _, entry := range wanted {
			if entry == bundle {
				return entry, true
			}
		}
	}
	for _, entry := range wanted {
		if entry == name {
			return entry, true
		}
	}
	return "", false
}
