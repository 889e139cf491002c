// Package backend decides which capture mechanism serves a session.
package backend

import (
	"fmt"

	"github.com/tapdeck/tapdeck/internal/native"
)

// Kind is the closed set of capture backends. Selected once per session
// start and immutable for the session lifetime.
type Kind int

const (
	// NativeProcessTap is a CoreAudio global tap with per-process exclusion.
	NativeProcessTap Kind = iota
	// ScreenCaptureSystemAudio is ScreenCaptureKit-based system audio.
	ScreenCaptureSystemAudio
	// GenericDeviceCapture is plain device capture (microphone, loopback device).
	GenericDeviceCapture
)

func (k Kind) String() string {
	switch k {
	case NativeProcessTap:
		return "native-tap"
	case ScreenCaptureSystemAudio:
		return "screencapture"
	case GenericDeviceCapture:
		return "device"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

// SupportsFiltering reports whether the backend honors a process exclusion set.
func (k Kind) SupportsFiltering() bool { return k == NativeProcessTap }

// DeviceType describes what the caller asked to record.
type DeviceType int

const (
	// SystemAudio is the mixed output of other applications.
	SystemAudio DeviceType = iota
	// InputDevice is a concrete capture device such as a microphone.
	InputDevice
)

func (d DeviceType) String() string {
	if d == SystemAudio {
		return "system-audio"
	}
	return "input-device"
}

// FilteringUnsupportedWarning tells the caller their filter was requested on
// a backend that cannot honor it. Capture proceeds unfiltered; the user must
// be told, never left assuming the filter applied.
type FilteringUnsupportedWarning struct {
	Backend Kind
}

func (w FilteringUnsupportedWarning) String() string {
	return fmt.Sprintf("backend %s cannot filter per application; capturing all system audio", w.Backend)
}

// Selector picks a backend from the requested device type and the configured
// preference. It never swaps an explicit preference behind the user's back;
// it only reports capability.
type Selector struct {
	// NativeTapSupported is probed from the platform at construction time.
	NativeTapSupported bool
}

// NewSelector probes platform support for the native process tap.
func NewSelector() *Selector {
	return &Selector{NativeTapSupported: native.Supported()}
}

// Select applies the priority rules: native tap when requested and
// supported, then the screen-capture system backend, then generic device
// capture. When filtering is requested but the chosen backend cannot honor
// it, a FilteringUnsupportedWarning is returned alongside the choice.
func (s *Selector) Select(device DeviceType, preference Kind, filterRequested bool) (Kind, []FilteringUnsupportedWarning) {
	kind := GenericDeviceCapture
	switch {
	case device == SystemAudio && preference == NativeProcessTap && s.NativeTapSupported:
		kind = NativeProcessTap
	case device == SystemAudio && preference == ScreenCaptureSystemAudio:
		kind = ScreenCaptureSystemAudio
	}

	var warnings []FilteringUnsupportedWarning
	if filterRequested && !kind.SupportsFiltering() {
		warnings = append(warnings, FilteringUnsupportedWarning{Backend: kind})
	}
	return kind, warnings
}
