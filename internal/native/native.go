// Package native manages the bundled capture helper binary that talks to the
// OS audio APIs (CoreAudio process taps and ScreenCaptureKit on macOS). The
// helper is the only code in the repository that touches native tap creation;
// everything above it works with portable Go types.
package native

import "errors"

// ErrUnsupported indicates the current platform has no native capture helper.
var ErrUnsupported = errors.New("native capture helper is not available on this platform")

// AppInfo is one process reported by the helper's audio-process enumeration.
type AppInfo struct {
	PID      int32  `json:"pid"`
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
}

// Mode selects which native capture mechanism the helper drives.
type Mode string

const (
	// ModeProcessTap is a CoreAudio global tap with a process exclusion set.
	ModeProcessTap Mode = "tap"
	// ModeScreenCapture is ScreenCaptureKit system audio (no per-process filtering).
	ModeScreenCapture Mode = "screencapture"
)
