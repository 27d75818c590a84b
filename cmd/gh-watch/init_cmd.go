package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/asheshgoplani/gh-watch/internal/config"
)

// handleInit writes a starter config and optionally resets local state.
func handleInit(configPath string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	resetState := fs.Bool("reset-state", false, "Delete the state database (cursors, timeline, queue)")
	fs.Parse(normalizeArgs(fs, args))

	out := NewCLIOutput(false, false)

	target := configPath
	if target == "" {
		resolved, err := config.ResolvePath("")
		if err != nil {
			out.Error(err.Error(), ErrCodeConfig)
			os.Exit(1)
		}
		target = resolved.Path
	}

	if *resetState {
		resetStateDB(configPath, out)
		if _, err := os.Stat(target); err == nil && !*force {
			// reset-state alone leaves an existing config in place
			return
		}
	}

	if _, err := os.Stat(target); err == nil && !*force {
		out.Error(fmt.Sprintf("%s already exists (use --force to overwrite)", FormatPath(target)), ErrCodeAlreadyExist)
		os.Exit(1)
	}

	if err := os.WriteFile(target, []byte(config.ExampleConfig), 0o644); err != nil {
		out.Error(err.Error(), ErrCodeConfig)
		os.Exit(1)
	}

	out.Success(fmt.Sprintf("wrote starter config to %s", FormatPath(target)), nil)
	fmt.Println("Edit it to add repositories, then run `gh-watch check`.")
}

// resetStateDB removes the state database file and its sqlite sidecars.
func resetStateDB(configPath string, out *CLIOutput) {
	var cfg config.Config
	if loaded, err := config.Load(configPath); err == nil {
		cfg = loaded.Config
	}
	dbPath, err := cfg.StateDBPathOrDefault()
	if err != nil {
		out.Error(err.Error(), ErrCodeState)
		os.Exit(1)
	}

	removed := false
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(path); err == nil {
			removed = true
		} else if !os.IsNotExist(err) {
			out.Error(err.Error(), ErrCodeState)
			os.Exit(1)
		}
	}

	if removed {
		out.Success(fmt.Sprintf("removed state database %s", FormatPath(dbPath)), nil)
		fmt.Println("The next poll will bootstrap every repository silently.")
	} else {
		fmt.Printf("%s no state database at %s\n", bulletSymbol, FormatPath(dbPath))
	}
}
