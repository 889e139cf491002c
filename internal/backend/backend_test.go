package backend

import "testing"

func TestSelectNativeTapWhenSupported(t *testing.T) {
	s := &Selector{NativeTapSupported: true}

	kind, warnings := s.Select(SystemAudio, NativeProcessTap, true)
	if kind != NativeProcessTap {
		t.Fatalf("expected native tap, got %s", kind)
	}
	if len(warnings) != 0 {
		t.Fatalf("native tap honors filtering, got warnings %v", warnings)
	}
}

func TestSelectFallsToDeviceWhenTapUnsupported(t *testing.T) {
	s := &Selector{NativeTapSupported: false}

	kind, _ := s.Select(SystemAudio, NativeProcessTap, false)
	if kind != GenericDeviceCapture {
		t.Fatalf("expected device capture when tap unsupported, got %s", kind)
	}
}

func TestSelectHonorsScreenCapturePreference(t *testing.T) {
	s := &Selector{NativeTapSupported: true}

	kind, _ := s.Select(SystemAudio, ScreenCaptureSystemAudio, false)
	if kind != ScreenCaptureSystemAudio {
		t.Fatalf("explicit preference must not be swapped, got %s", kind)
	}
}

func TestSelectWarnsWhenFilterCannotBeHonored(t *testing.T) {
	s := &Selector{NativeTapSupported: true}

	kind, warnings := s.Select(SystemAudio, ScreenCaptureSystemAudio, true)
	if kind != ScreenCaptureSystemAudio {
		t.Fatalf("expected screencapture backend, got %s", kind)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one FilteringUnsupportedWarning, got %v", warnings)
	}
	if warnings[0].Backend != ScreenCaptureSystemAudio {
		t.Fatalf("warning names wrong backend: %s", warnings[0].Backend)
	}
}

func TestSelectInputDeviceAlwaysGeneric(t *testing.T) {
	s := &Selector{NativeTapSupported: true}

	kind, warnings := s.Select(InputDevice, NativeProcessTap, true)
	if kind != GenericDeviceCapture {
		t.Fatalf("input devices use generic capture, got %s", kind)
	}
	if len(warnings) != 1 {
		t.Fatalf("filter on a device capture must warn, got %v", warnings)
	}
}

func TestSupportsFiltering(t *testing.T) {
	if !NativeProcessTap.SupportsFiltering() {
		t.Fatal("native tap must support filtering")
	}
	if ScreenCaptureSystemAudio.SupportsFiltering() || GenericDeviceCapture.SupportsFiltering() {
		t.Fatal("only the native tap supports filtering")
	}
}
