package notify

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/asheshgoplani/gh-watch/internal/logging"
)

var notifyLog = logging.ForComponent(logging.CompNotify)

const (
	noopWarning = "desktop notifications are supported on macOS and WSL only; using noop notifier"
	wslWarning  = "WSL detected but BurntToast is unavailable via powershell.exe; using noop notifier"
)

type backendKind int

const (
	backendNoop backendKind = iota
	backendMacOS
	backendWSLBurntToast
)

func (k backendKind) String() string {
	switch k {
	case backendMacOS:
		return "osascript"
	case backendWSLBurntToast:
		return "burnttoast"
	default:
		return "noop"
	}
}

// Desktop delivers notifications through the host platform's native
// mechanism.
type Desktop struct {
	backend         backendKind
	startupWarnings []string
}

// NewDesktop picks a backend for the current platform. Construction
// never fails; hosts without a usable backend get a noop with a
// warning.
func NewDesktop() *Desktop {
	d := newDesktopForPlatform()
	notifyLog.Info("notify_backend_selected",
		"backend", d.backend.String(), "warnings", len(d.startupWarnings))
	return d
}

func newDesktopForPlatform() *Desktop {
	switch runtime.GOOS {
	case "darwin":
		return &Desktop{backend: backendMacOS}
	case "linux":
		kind, warning := detectLinuxBackend(
			os.Getenv("WSL_DISTRO_NAME"),
			os.Getenv("WSL_INTEROP"),
			readProcWSLHint(),
			probeBurntToast,
		)
		d := &Desktop{backend: kind}
		if warning != "" {
			d.startupWarnings = []string{warning}
		}
		return d
	default:
		return &Desktop{backend: backendNoop, startupWarnings: []string{noopWarning}}
	}
}

// StartupWarnings reports backend limitations worth logging once at
// startup.
func (d *Desktop) StartupWarnings() []string {
	return d.startupWarnings
}

func (d *Desktop) CheckHealth() error {
	if d.backend == backendMacOS {
		return checkOsascript()
	}
	return nil
}

func (d *Desktop) Notify(p Payload, includeURL bool) error {
	title := Title(p)
	body := Body(p, includeURL)
	switch d.backend {
	case backendMacOS:
		return notifyViaOsascript(title, body)
	case backendWSLBurntToast:
		return notifyViaBurntToast(title, body)
	default:
		return nil
	}
}

// detectLinuxBackend decides between BurntToast-over-WSL and noop.
// probe is called only when WSL is detected.
func detectLinuxBackend(wslDistroName, wslInterop, procHint string, probe func() bool) (backendKind, string) {
	if !isWSL(wslDistroName, wslInterop, procHint) {
		return backendNoop, noopWarning
	}
	if probe() {
		return backendWSLBurntToast, ""
	}
	return backendNoop, wslWarning
}

func isWSL(wslDistroName, wslInterop, procHint string) bool {
	if strings.TrimSpace(wslDistroName) != "" || strings.TrimSpace(wslInterop) != "" {
		return true
	}
	return strings.Contains(strings.ToLower(procHint), "microsoft")
}

func readProcWSLHint() string {
	var parts []string
	for _, path := range []string{"/proc/version", "/proc/sys/kernel/osrelease"} {
		if data, err := os.ReadFile(path); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}

func probeBurntToast() bool {
	out, err := exec.Command("powershell.exe",
		"-NoProfile", "-NonInteractive", "-Command",
		"Import-Module BurntToast -ErrorAction Stop; Get-Command New-BurntToastNotification -ErrorAction Stop | Out-Null; Write-Output ok",
	).Output()
	return err == nil && strings.Contains(string(out), "ok")
}

const burntToastScript = `
Import-Module BurntToast -ErrorAction Stop
$title = $env:GH_WATCH_NOTIFY_TITLE
$body = $env:GH_WATCH_NOTIFY_BODY
New-BurntToastNotification -Text $title, $body | Out-Null
`

func notifyViaBurntToast(title, body string) error {
	cmd := exec.Command("powershell.exe",
		"-NoProfile", "-NonInteractive", "-Command", burntToastScript)
	cmd.Env = append(os.Environ(),
		"GH_WATCH_NOTIFY_TITLE="+title,
		"GH_WATCH_NOTIFY_BODY="+body,
	)
	return runNotifyCommand(cmd, "powershell.exe")
}

func checkOsascript() error {
	return runNotifyCommand(exec.Command("osascript", "-e", `return "ok"`), "osascript")
}

func notifyViaOsascript(title, body string) error {
	script := "display notification \"" + escapeAppleScript(body) +
		"\" with title \"" + escapeAppleScript(title) + "\""
	return runNotifyCommand(exec.Command("osascript", "-e", script), "osascript")
}

func escapeAppleScript(raw string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(raw)
}

func runNotifyCommand(cmd *exec.Cmd, program string) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			return fmt.Errorf("notify: %s failed: %w", program, err)
		}
		return fmt.Errorf("notify: %s failed: %s: %w", program, detail, err)
	}
	return nil
}
