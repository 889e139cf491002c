//go:build !darwin

package native

import (
	"context"
	"os/exec"
)

// Supported reports whether the native helper can run on this platform.
func Supported() bool { return false }

// HelperPath is unavailable off macOS.
func HelperPath() (string, error) { return "", ErrUnsupported }

// ListAudioApps is unavailable off macOS.
func ListAudioApps(ctx context.Context) ([]AppInfo, error) { return nil, ErrUnsupported }

// CaptureCommand is unavailable off macOS.
func CaptureCommand(ctx context.Context, mode Mode, payload []byte) (*exec.Cmd, error) {
	return nil, ErrUnsupported
}

// CheckAudioCapturePermission is unavailable off macOS.
func CheckAudioCapturePermission(ctx context.Context) bool { return false }
