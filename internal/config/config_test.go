package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

const minimalConfig = `
[[repositories]]
name = "octocat/hello-world"
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(minimalConfig)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.IntervalSeconds)
	assert.Equal(t, 24, cfg.BootstrapLookbackHours)
	assert.Equal(t, 500, cfg.TimelineLimit)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, "dark", cfg.Theme)
	assert.True(t, cfg.Notifications.Enabled)
	assert.True(t, cfg.Notifications.IncludeURL)
	assert.Equal(t, 3, cfg.Notifications.MaxAttempts)
	assert.Equal(t, 30, cfg.Poll.TimeoutSeconds)
	assert.Equal(t, []string{"octocat/hello-world"}, cfg.EnabledRepositories())
}

func TestParseExplicitDisablesStick(t *testing.T) {
	cfg, err := Parse(`
[[repositories]]
name = "octocat/hello-world"
enabled = false

[notifications]
enabled = false
include_url = false
`)
	require.NoError(t, err)

	assert.Empty(t, cfg.EnabledRepositories())
	assert.False(t, cfg.Notifications.Enabled)
	assert.False(t, cfg.Notifications.IncludeURL)
}

func TestParseExampleConfig(t *testing.T) {
	cfg, err := Parse(ExampleConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"octocat/hello-world"}, cfg.EnabledRepositories())
	assert.Empty(t, cfg.StabilityWarnings())
}

func TestParseRejectsBadRepoName(t *testing.T) {
	for _, name := range []string{"hello-world", "octocat/", "/hello", "a/b/c"} {
		_, err := Parse(`
[[repositories]]
name = "` + name + `"
`)
		assert.Error(t, err, "name %q should be rejected", name)
	}
}

func TestParseRejectsDuplicateRepos(t *testing.T) {
	_, err := Parse(`
[[repositories]]
name = "octocat/hello-world"

[[repositories]]
name = "octocat/hello-world"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestParseRejectsEmptyRepositories(t *testing.T) {
	_, err := Parse(`interval_seconds = 300`)
	require.Error(t, err)
}

func TestParseRejectsUnknownEventKind(t *testing.T) {
	_, err := Parse(minimalConfig + `
[filters]
event_kinds = ["pr_created", "nonsense"]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonsense")
}

func TestParseRejectsBadTheme(t *testing.T) {
	_, err := Parse(`theme = "neon"` + minimalConfig)
	require.Error(t, err)
}

func TestEventFilters(t *testing.T) {
	cfg, err := Parse(minimalConfig + `
[filters]
event_kinds = ["pr_created", "pr_merged"]
ignore_actors = ["dependabot[bot]"]
only_involving_me = true
`)
	require.NoError(t, err)

	filters, err := cfg.EventFilters("octocat")
	require.NoError(t, err)
	assert.Equal(t, []event.Kind{event.KindPrCreated, event.KindPrMerged}, filters.Kinds)
	assert.Equal(t, []string{"dependabot[bot]"}, filters.IgnoreActors)
	assert.True(t, filters.OnlyInvolvingMe)
	assert.Equal(t, "octocat", filters.ViewerLogin)
}

func TestResolvePathExplicitWins(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/from-env.toml")

	resolved, err := ResolvePath("/tmp/explicit.toml")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.toml", resolved.Path)
	assert.Equal(t, SourceExplicitArg, resolved.Source)
}

func TestResolvePathEnvVar(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/from-env.toml")

	resolved, err := ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.toml", resolved.Path)
	assert.Equal(t, SourceEnvVar, resolved.Source)
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(minimalConfig), 0o644))
	t.Chdir(dir)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceCurrentDir, loaded.ResolvedPath.Source)
	assert.Equal(t, []string{"octocat/hello-world"}, loaded.EnabledRepositories())
}

func TestLoadMissingFileMentionsInit(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gh-watch init")
}

func TestStabilityWarnings(t *testing.T) {
	cfg, err := Parse(`interval_seconds = 10` + minimalConfig)
	require.NoError(t, err)

	warnings := cfg.StabilityWarnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "rate limiting")
}
