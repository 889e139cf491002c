//go:build darwin

// macOS capture helper:
//
//   Process-tap audio  — CoreAudio process taps (macOS 14.2+). The calling
//                        process must have Audio Capture permission in
//                        System Settings > Privacy & Security.
//   System audio       — Apple ScreenCaptureKit (macOS 13+), requires
//                        Screen Recording permission.
//
// On first use the embedded Swift source is compiled with swiftc (part of
// Xcode Command Line Tools) and cached at ~/Library/Caches/tapdeck/tapdeck-helper.

package native

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

//go:embed taphelper.swift
var tapHelperSrc []byte

// Supported reports whether the native helper can run on this platform.
func Supported() bool { return true }

// HelperPath returns the path to the compiled helper binary, compiling it
// from the embedded source if necessary.
func HelperPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache dir: %w", err)
	}
	binDir := filepath.Join(cacheDir, "tapdeck")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	binPath := filepath.Join(binDir, "tapdeck-helper")

	if _, err := os.Stat(binPath); err == nil {
		return binPath, nil
	}

	srcFile, err := os.CreateTemp("", "tapdeck-helper-*.swift")
	if err != nil {
		return "", fmt.Errorf("failed to create temp source file: %w", err)
	}
	defer os.Remove(srcFile.Name())

	if _, err := srcFile.Write(tapHelperSrc); err != nil {
		srcFile.Close()
		return "", fmt.Errorf("failed to write Swift source: %w", err)
	}
	srcFile.Close()

	// swiftc is bundled with Xcode Command Line Tools.
	compileCmd := exec.Command("swiftc", "-O", "-o", binPath, srcFile.Name())
	if out, err := compileCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("failed to compile capture helper (ensure Xcode CLT is installed: xcode-select --install): %w\n%s", err, out)
	}
	return binPath, nil
}

// ListAudioApps asks the helper for processes currently registered with the
// CoreAudio HAL as audio producers. Output is one JSON object per line.
func ListAudioApps(ctx context.Context) ([]AppInfo, error) {
	bin, err := HelperPath()
	if err != nil {
		return nil, err
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "list-apps")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("helper list-apps failed: %w", err)
	}

	var apps []AppInfo
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var app AppInfo
		if err := json.Unmarshal(line, &app); err != nil {
			return nil, fmt.Errorf("helper emitted malformed app entry: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, scanner.Err()
}

// CaptureCommand builds the helper invocation for one capture stream. The
// descriptor payload travels on stdin; raw f32le mono samples arrive on
// stdout. The caller owns Start/Wait and the stdout pipe.
func CaptureCommand(ctx context.Context, mode Mode, payload []byte) (*exec.Cmd, error) {
	bin, err := HelperPath()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, bin, "capture", "--mode", string(mode))
	cmd.Stdin = bytes.NewReader(payload)
	return cmd, nil
}

// CheckAudioCapturePermission probes whether the helper can create a tap.
// The helper exits 0 when permission is granted.
func CheckAudioCapturePermission(ctx context.Context) bool {
	bin, err := HelperPath()
	if err != nil {
		return false
	}
	return exec.CommandContext(ctx, bin, "check-permission").Run() == nil
}
