package ui

import (
	"os/exec"

	"github.com/asheshgoplani/gh-watch/internal/platform"
)

// OpenURL launches the system browser for url.
func OpenURL(url string) error {
	switch platform.Detect() {
	case platform.PlatformMacOS:
		return exec.Command("open", url).Start()
	case platform.PlatformWindows:
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case platform.PlatformWSL1, platform.PlatformWSL2:
		// The Windows browser handles URLs in WSL; xdg-open usually
		// has nothing to dispatch to.
		return exec.Command("powershell.exe", "-NoProfile", "-Command", "Start-Process", "'"+url+"'").Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
