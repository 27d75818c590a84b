// Package clipboard copies text to the system clipboard, falling back
// to an OSC52 escape sequence when no native tool is available.
package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/asheshgoplani/gh-watch/internal/platform"
)

// Copy places text on the system clipboard and reports the method used
// ("pbcopy", "clip.exe", "wl-copy", "xclip", "xsel", or "osc52").
func Copy(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("no content to copy")
	}

	if method, err := copyNative(text); err == nil {
		return method, nil
	}

	// OSC52 asks the terminal itself to perform the copy, which also
	// works over SSH.
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	seq := osc52Sequence(encoded, insideTmux())
	if _, err := os.Stderr.WriteString(seq); err != nil {
		return "", fmt.Errorf("no clipboard method available (install pbcopy, xclip, xsel, or wl-copy)")
	}
	return "osc52", nil
}

func copyNative(text string) (string, error) {
	for _, c := range nativeCommands() {
		path, err := exec.LookPath(c.name)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, c.args...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			continue
		}
		return c.name, nil
	}
	return "", fmt.Errorf("no native clipboard tool found")
}

type clipCommand struct {
	name string
	args []string
}

func nativeCommands() []clipCommand {
	switch platform.Detect() {
	case platform.PlatformMacOS:
		return []clipCommand{{name: "pbcopy"}}
	case platform.PlatformWSL1, platform.PlatformWSL2:
		// clip.exe bridges to the Windows clipboard
		return []clipCommand{
			{name: "clip.exe"},
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	case platform.PlatformLinux:
		return []clipCommand{
			{name: "wl-copy"},
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
	default:
		return nil
	}
}

func insideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// osc52Sequence builds the OSC52 copy escape. Inside tmux the sequence
// must be wrapped in a DCS passthrough so tmux forwards it to the
// outer terminal.
func osc52Sequence(encoded string, tmux bool) string {
	seq := "\x1b]52;c;" + encoded + "\x07"
	if tmux {
		return "\x1bPtmux;" + strings.ReplaceAll(seq, "\x1b", "\x1b\x1b") + "\x1b\\"
	}
	return seq
}
