package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug", Format: "json"})
	defer Shutdown()

	log := ForComponent(CompPoll)
	log.Info("cycle started", "repos", 2)

	data, err := os.ReadFile(filepath.Join(dir, "gh-watch.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"component":"poll"`) {
		t.Errorf("missing component field: %s", content)
	}
	if !strings.Contains(content, "cycle started") {
		t.Errorf("missing message: %s", content)
	}
}

func TestDiscardWithoutDebugOrLogDir(t *testing.T) {
	Init(Config{})
	defer Shutdown()

	// Must not panic and must produce a usable logger.
	Logger().Info("goes nowhere")
	ForComponent(CompUI).Debug("also nowhere")
}

func TestComponentLoggerCreatedBeforeInit(t *testing.T) {
	Shutdown()
	early := ForComponent(CompQueue)

	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "info"})
	defer Shutdown()

	early.Info("late binding works")

	data, err := os.ReadFile(filepath.Join(dir, "gh-watch.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "late binding works") {
		t.Errorf("pre-Init logger did not bind to real handler: %s", data)
	}
}

func TestDebugEnvEnablesDebugLevel(t *testing.T) {
	t.Setenv(EnvDebug, "1")
	dir := t.TempDir()
	Init(Config{LogDir: dir})
	defer Shutdown()

	ForComponent(CompWatch).Debug("visible in debug")

	data, err := os.ReadFile(filepath.Join(dir, "gh-watch.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "visible in debug") {
		t.Errorf("debug message missing: %s", data)
	}
}
