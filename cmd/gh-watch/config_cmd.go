package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/asheshgoplani/gh-watch/internal/config"
)

// handleConfig implements `gh-watch config path` and `gh-watch config open`.
func handleConfig(configPath string, args []string) {
	sub := "path"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "path":
		fs := flag.NewFlagSet("config path", flag.ExitOnError)
		jsonMode := fs.Bool("json", false, "Output machine-readable JSON")
		fs.Parse(normalizeArgs(fs, args))
		printConfigPath(configPath, NewCLIOutput(*jsonMode, false))

	case "open":
		openConfig(configPath)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", sub)
		fmt.Fprintln(os.Stderr, "Usage: gh-watch config [path|open]")
		os.Exit(1)
	}
}

func printConfigPath(configPath string, out *CLIOutput) {
	resolved, err := config.ResolvePath(configPath)
	if err != nil {
		out.Error(err.Error(), ErrCodeConfig)
		os.Exit(1)
	}

	_, statErr := os.Stat(resolved.Path)
	exists := statErr == nil

	human := fmt.Sprintf("%s (source: %s", resolved.Path, resolved.Source)
	if !exists {
		human += ", not created yet"
	}
	human += ")\n\nResolution order:\n"
	type candidate struct {
		Path   string `json:"path"`
		Source string `json:"source"`
		Exists bool   `json:"exists"`
	}
	var candidates []candidate
	for _, c := range config.ResolutionCandidates() {
		_, err := os.Stat(c.Path)
		candidates = append(candidates, candidate{
			Path:   c.Path,
			Source: string(c.Source),
			Exists: err == nil,
		})
		marker := " "
		if err == nil {
			marker = successSymbol
		}
		human += fmt.Sprintf("  %s %-12s %s\n", marker, c.Source, FormatPath(c.Path))
	}

	out.Print(human, map[string]interface{}{
		"path":       resolved.Path,
		"source":     string(resolved.Source),
		"exists":     exists,
		"candidates": candidates,
	})
}

func openConfig(configPath string) {
	resolved, err := config.ResolvePath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(resolved.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s does not exist (run `gh-watch init` first)\n",
			FormatPath(resolved.Path))
		os.Exit(1)
	}

	if editor := os.Getenv("EDITOR"); editor != "" {
		cmd := exec.Command(editor, resolved.Path)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", editor, err)
			os.Exit(1)
		}
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", resolved.Path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", resolved.Path)
	default:
		cmd = exec.Command("xdg-open", resolved.Path)
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (set $EDITOR to pick an editor)\n", err)
		os.Exit(1)
	}
}
