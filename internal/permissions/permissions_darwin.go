//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkAudioPermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestAudioPermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import (
	"context"
	"fmt"
	"time"

	"github.com/tapdeck/tapdeck/internal/native"
)

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckAudio returns the current audio permission status
func CheckAudio() (int, error) {
	status := int(C.checkAudioPermission())
	return status, nil
}

// RequestAudio triggers the system audio permission dialog
func RequestAudio() error {
	C.requestAudioPermission()
	return nil
}

// CheckAudioCapture probes whether a system-audio tap can actually be
// created. This is the macOS 14.4+ "Audio Capture" permission, distinct
// from plain microphone access.
func CheckAudioCapture() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return native.CheckAudioCapturePermission(ctx)
}

// EnsurePermissions checks and requests all required permissions
func EnsurePermissions() error {
	status, _ := CheckAudio()
	if status != PermissionAuthorized {
		fmt.Println("⚠️  Audio permission required")
		RequestAudio()
		return fmt.Errorf("audio permission not granted")
	}

	if !CheckAudioCapture() {
		fmt.Println("⚠️  Audio Capture permission required for system-audio taps")
		fmt.Println("   Go to: System Settings → Privacy & Security → Audio Capture")
		return fmt.Errorf("audio capture permission not granted")
	}

	return nil
}
