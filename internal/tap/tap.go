// Package tap builds the native capture-tap descriptor: the encoding of a
// process-exclusion set into the payload the platform tap API consumes.
package tap

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tapdeck/tapdeck/internal/filter"
)

// payloadVersion guards the helper-side decoder against format drift.
const payloadVersion = 1

// live counts descriptors built but not yet released. Exposed for leak
// assertions: no descriptor may outlive its session on any exit path.
var live atomic.Int64

// LiveCount returns the number of unreleased descriptors.
func LiveCount() int64 { return live.Load() }

// BuildError reports that encoding a specific excluded PID failed. The
// builder never drops a PID from the set; a single bad member fails the
// whole build.
type BuildError struct {
	PID int32
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("tap descriptor build failed for pid %d: %v", e.PID, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// descriptorPayload is the wire form handed to the native helper.
type descriptorPayload struct {
	Version      int     `json:"version"`
	Mode         string  `json:"mode"`
	ExcludedPIDs []int32 `json:"excluded_pids"`
}

// Descriptor is the built tap configuration: a global tap minus the encoded
// exclusion set. It must be released exactly once, on session teardown or
// on the failure path of the start that created it.
type Descriptor struct {
	excluded []int32
	payload  []byte

	mu       sync.Mutex
	released bool
}

// Build encodes every member of the exclusion set into a descriptor. It is
// pure over well-formed input and total: either the returned descriptor
// carries the complete set, or the build fails with a BuildError naming the
// first PID that could not be encoded. There is no partial success and no
// silent fallback to an empty exclusion list.
func Build(exclude filter.ExcludeSet) (*Descriptor, error) {
	pids := exclude.PIDs()
	for _, pid := range pids {
		if pid <= 0 {
			return nil, &BuildError{PID: pid, Err: fmt.Errorf("pid out of range")}
		}
	}

	payload, err := json.Marshal(descriptorPayload{
		Version:      payloadVersion,
		Mode:         "global-exclude",
		ExcludedPIDs: pids,
	})
	if err != nil {
		return nil, fmt.Errorf("tap descriptor encode failed: %w", err)
	}

	// Verify by construction that the payload round-trips the full set.
	// An encoder that quietly emits an empty exclusion list is exactly the
	// defect this step exists to rule out.
	var decoded descriptorPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("tap descriptor verification failed: %w", err)
	}
	if len(decoded.ExcludedPIDs) != len(pids) {
		return nil, fmt.Errorf("tap descriptor verification failed: encoded %d of %d pids",
			len(decoded.ExcludedPIDs), len(pids))
	}
	for i, pid := range pids {
		if decoded.ExcludedPIDs[i] != pid {
			return nil, &BuildError{PID: pid, Err: fmt.Errorf("pid missing from encoded payload")}
		}
	}

	live.Add(1)
	return &Descriptor{excluded: pids, payload: payload}, nil
}

// ExcludedPIDs returns the encoded exclusion membership in ascending order.
func (d *Descriptor) ExcludedPIDs() []int32 {
	out := make([]int32, len(d.excluded))
	copy(out, d.excluded)
	return out
}

// Payload returns the native wire form of the descriptor.
func (d *Descriptor) Payload() []byte {
	out := make([]byte, len(d.payload))
	copy(out, d.payload)
	return out
}

// SameExclusions reports content equality of two descriptors' exclusion
// membership, independent of handle identity.
func (d *Descriptor) SameExclusions(other *Descriptor) bool {
	if other == nil || len(d.excluded) != len(other.excluded) {
		return false
	}
	for i, pid := range d.excluded {
		if other.excluded[i] != pid {
			return false
		}
	}
	return true
}

// Release frees the descriptor. The first call releases; later calls are
// no-ops, so every exit path of the session state machine can release
// unconditionally.
func (d *Descriptor) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	live.Add(-1)
}

// Released reports whether the descriptor has been released.
func (d *Descriptor) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
