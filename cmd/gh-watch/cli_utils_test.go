package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArgsMovesFlagsFirst(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("json", false, "")
	fs.String("name", "", "")

	got := normalizeArgs(fs, []string{"positional", "--json", "--name", "value"})
	assert.Equal(t, []string{"--json", "--name", "value", "positional"}, got)
}

func TestNormalizeArgsRespectsTerminator(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("json", false, "")

	got := normalizeArgs(fs, []string{"--json", "--", "--not-a-flag"})
	assert.Equal(t, []string{"--json", "--not-a-flag"}, got)
}

func TestNormalizeArgsFlagEqualsValue(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("name", "", "")

	got := normalizeArgs(fs, []string{"pos", "--name=value"})
	assert.Equal(t, []string{"--name=value", "pos"}, got)
}

func TestExtractConfigFlag(t *testing.T) {
	path, rest := extractConfigFlag([]string{"-c", "/tmp/a.toml", "once", "--json"})
	assert.Equal(t, "/tmp/a.toml", path)
	assert.Equal(t, []string{"once", "--json"}, rest)

	path, rest = extractConfigFlag([]string{"--config=/tmp/b.toml", "check"})
	assert.Equal(t, "/tmp/b.toml", path)
	assert.Equal(t, []string{"check"}, rest)

	path, rest = extractConfigFlag([]string{"watch"})
	assert.Empty(t, path)
	assert.Equal(t, []string{"watch"}, rest)
}

func TestFormatPathShortensHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "~/x/config.toml", FormatPath(filepath.Join(home, "x", "config.toml")))
	assert.Equal(t, "/etc/config.toml", FormatPath("/etc/config.toml"))
}

func TestCLIOutputQuietSuppresses(t *testing.T) {
	out := NewCLIOutput(false, true)
	stdout := captureStdout(t, func() {
		out.Success("done", nil)
		out.Print("hello", nil)
	})
	assert.Empty(t, stdout)
}

func TestCLIOutputJSON(t *testing.T) {
	out := NewCLIOutput(true, false)
	stdout := captureStdout(t, func() {
		out.Print("ignored human text", map[string]interface{}{"ok": true})
	})
	assert.Contains(t, stdout, `"ok": true`)
	assert.NotContains(t, stdout, "ignored human text")
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}
