package platform

import (
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	// Reset detection cache for clean test
	detectionDone = false
	detectedPlatform = ""

	p := Detect()
	if p == "" {
		t.Error("Detect() returned empty platform")
	}

	if runtime.GOOS == "darwin" && p != PlatformMacOS {
		t.Errorf("Expected PlatformMacOS on darwin, got %s", p)
	}

	// Detection should be cached
	p2 := Detect()
	if p != p2 {
		t.Errorf("Detect() not cached: got %s then %s", p, p2)
	}
}

func TestPlatformString(t *testing.T) {
	tests := []struct {
		platform Platform
		expected string
	}{
		{PlatformMacOS, "macOS"},
		{PlatformLinux, "Linux"},
		{PlatformWSL1, "WSL1"},
		{PlatformWSL2, "WSL2"},
		{PlatformWindows, "Windows"},
		{PlatformUnknown, "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.platform.String(); got != tt.expected {
			t.Errorf("Platform(%s).String() = %s, want %s", tt.platform, got, tt.expected)
		}
	}
}

func TestIsWSL(t *testing.T) {
	tests := []struct {
		platform Platform
		isWSL    bool
	}{
		{PlatformMacOS, false},
		{PlatformLinux, false},
		{PlatformWSL1, true},
		{PlatformWSL2, true},
		{PlatformWindows, false},
	}

	for _, tt := range tests {
		// Override detection
		detectedPlatform = tt.platform
		detectionDone = true

		if got := IsWSL(); got != tt.isWSL {
			t.Errorf("IsWSL() for %s = %v, want %v", tt.platform, got, tt.isWSL)
		}
	}

	// Reset
	detectionDone = false
}

func TestCheckFsnotifySupport(t *testing.T) {
	// On a normal local filesystem the check should stay quiet.
	if runtime.GOOS != "linux" {
		if msg := CheckFsnotifySupport(t.TempDir()); msg != "" {
			t.Errorf("expected no warning on %s, got %q", runtime.GOOS, msg)
		}
		return
	}

	msg := CheckFsnotifySupport(t.TempDir())
	// tmpdir is usually tmpfs or ext4; neither should warn
	if msg != "" {
		t.Logf("fsnotify warning on test filesystem: %s", msg)
	}
}
