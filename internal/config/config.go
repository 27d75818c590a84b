package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/gh-watch/internal/event"
)

// ConfigFileName is the TOML config file gh-watch looks for.
const ConfigFileName = "config.toml"

// EnvConfigPath overrides config resolution when set.
const EnvConfigPath = "GH_WATCH_CONFIG"

// Config is the user-facing configuration in TOML format.
type Config struct {
	// IntervalSeconds is the delay between poll cycles (default: 300)
	IntervalSeconds int `toml:"interval_seconds"`

	// BootstrapLookbackHours is reported for first-ever polls; a bootstrap
	// cycle never notifies regardless (default: 24)
	BootstrapLookbackHours int `toml:"bootstrap_lookback_hours"`

	// TimelineLimit caps how many timeline rows the UI loads (default: 500)
	TimelineLimit int `toml:"timeline_limit"`

	// RetentionDays is how long timeline rows are kept (default: 90)
	RetentionDays int `toml:"retention_days"`

	// StateDBPath overrides the default state database location
	StateDBPath string `toml:"state_db_path"`

	// Theme sets the TUI color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Repositories lists the watched repositories
	Repositories []RepositoryConfig `toml:"repositories"`

	// Notifications defines desktop notification behavior
	Notifications NotificationConfig `toml:"notifications"`

	// Filters defines which events are notification-worthy
	Filters FiltersConfig `toml:"filters"`

	// Poll defines upstream fetch behavior
	Poll PollConfig `toml:"poll"`
}

// RepositoryConfig is one watched repository.
type RepositoryConfig struct {
	// Name is the owner/repo identifier
	Name string `toml:"name"`

	// Enabled toggles polling without removing the entry (default: true)
	Enabled *bool `toml:"enabled"`
}

// IsEnabled treats an absent enabled key as true.
func (r RepositoryConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// NotificationConfig defines desktop notification behavior.
type NotificationConfig struct {
	// Enabled toggles desktop notifications entirely (default: true)
	Enabled bool `toml:"enabled"`

	// IncludeURL appends the event URL to the notification body (default: true)
	IncludeURL bool `toml:"include_url"`

	// MaxAttempts is the delivery attempt ceiling before an entry is
	// abandoned (default: 3)
	MaxAttempts int `toml:"max_attempts"`
}

// FiltersConfig defines which events are notification-worthy.
type FiltersConfig struct {
	// EventKinds is an allow-list of kinds; empty means all
	EventKinds []string `toml:"event_kinds"`

	// IgnoreActors mutes events from these logins (e.g. bots)
	IgnoreActors []string `toml:"ignore_actors"`

	// OnlyInvolvingMe keeps only events that involve the authenticated user
	OnlyInvolvingMe bool `toml:"only_involving_me"`

	// DropFiltered removes filtered events from the timeline too, instead
	// of logging them with notifications muted (default: false)
	DropFiltered bool `toml:"drop_filtered"`
}

// PollConfig defines upstream fetch behavior.
type PollConfig struct {
	// TimeoutSeconds bounds each fetch attempt (default: 30)
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// PathSource says where a resolved config path came from.
type PathSource string

const (
	SourceExplicitArg PathSource = "--config"
	SourceEnvVar      PathSource = EnvConfigPath
	SourceCurrentDir  PathSource = "./" + ConfigFileName
	SourceBinaryDir   PathSource = "binary-directory"
)

// ResolvedPath is a config path plus its origin, for doctor-style output.
type ResolvedPath struct {
	Path   string
	Source PathSource
}

// Loaded bundles a parsed config with the path it was read from.
type Loaded struct {
	Config
	ResolvedPath ResolvedPath
}

func withDefaults(cfg Config) Config {
	if cfg.IntervalSeconds == 0 {
		cfg.IntervalSeconds = 300
	}
	if cfg.BootstrapLookbackHours == 0 {
		cfg.BootstrapLookbackHours = 24
	}
	if cfg.TimelineLimit == 0 {
		cfg.TimelineLimit = 500
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 90
	}
	if cfg.Theme == "" {
		cfg.Theme = "dark"
	}
	if cfg.Notifications.MaxAttempts == 0 {
		cfg.Notifications.MaxAttempts = 3
	}
	if cfg.Poll.TimeoutSeconds == 0 {
		cfg.Poll.TimeoutSeconds = 30
	}
	return cfg
}

// Parse decodes and validates TOML config content.
func Parse(src string) (Config, error) {
	var cfg Config
	md, err := toml.Decode(src, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	cfg = withDefaults(cfg)
	if !md.IsDefined("notifications", "enabled") {
		cfg.Notifications.Enabled = true
	}
	if !md.IsDefined("notifications", "include_url") {
		cfg.Notifications.IncludeURL = true
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.Repositories) == 0 {
		return fmt.Errorf("config: repositories must contain at least one entry")
	}
	seen := make(map[string]bool, len(cfg.Repositories))
	for _, repo := range cfg.Repositories {
		if err := ValidateRepoName(repo.Name); err != nil {
			return err
		}
		if seen[repo.Name] {
			return fmt.Errorf("config: repository %q listed more than once", repo.Name)
		}
		seen[repo.Name] = true
	}
	if cfg.IntervalSeconds < 1 {
		return fmt.Errorf("config: interval_seconds must be >= 1")
	}
	if cfg.TimelineLimit < 1 {
		return fmt.Errorf("config: timeline_limit must be >= 1")
	}
	if cfg.RetentionDays < 1 {
		return fmt.Errorf("config: retention_days must be >= 1")
	}
	if cfg.Notifications.MaxAttempts < 1 {
		return fmt.Errorf("config: notifications.max_attempts must be >= 1")
	}
	if cfg.Poll.TimeoutSeconds < 1 {
		return fmt.Errorf("config: poll.timeout_seconds must be >= 1")
	}
	switch cfg.Theme {
	case "dark", "light", "system":
	default:
		return fmt.Errorf("config: theme must be dark, light, or system (got %q)", cfg.Theme)
	}
	if _, err := cfg.Filters.EventKindFilters(); err != nil {
		return err
	}
	return nil
}

// ValidateRepoName checks the owner/repo format.
func ValidateRepoName(name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("config: repository %q is invalid; expected owner/repo format", name)
	}
	return nil
}

// EventKindFilters parses the configured kind allow-list.
func (f FiltersConfig) EventKindFilters() ([]event.Kind, error) {
	kinds := make([]event.Kind, 0, len(f.EventKinds))
	for _, raw := range f.EventKinds {
		k, err := event.ParseKind(raw)
		if err != nil {
			return nil, fmt.Errorf("config: filters.event_kinds: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// EventFilters builds the classifier filter set. The viewer login is
// resolved by the caller at startup (empty when unknown).
func (c Config) EventFilters(viewerLogin string) (event.Filters, error) {
	kinds, err := c.Filters.EventKindFilters()
	if err != nil {
		return event.Filters{}, err
	}
	return event.Filters{
		Kinds:           kinds,
		IgnoreActors:    c.Filters.IgnoreActors,
		OnlyInvolvingMe: c.Filters.OnlyInvolvingMe,
		ViewerLogin:     viewerLogin,
		DropFiltered:    c.Filters.DropFiltered,
	}, nil
}

// Interval returns the poll interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// FetchTimeout returns the per-attempt fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Poll.TimeoutSeconds) * time.Second
}

// EnabledRepositories returns the names of enabled targets in config order.
func (c Config) EnabledRepositories() []string {
	var names []string
	for _, repo := range c.Repositories {
		if repo.IsEnabled() {
			names = append(names, repo.Name)
		}
	}
	return names
}

// Load reads config from the resolved location. explicitPath may be empty.
func Load(explicitPath string) (*Loaded, error) {
	resolved, err := ResolvePath(explicitPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved.Path)
	if err != nil {
		return nil, fmt.Errorf(
			"config: read %s (source: %s): %w (run `gh-watch init` to create it, or pass --config <path>)",
			resolved.Path, resolved.Source, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, ResolvedPath: resolved}, nil
}

// ResolvePath picks the config location: explicit flag, then the
// GH_WATCH_CONFIG environment variable, then ./config.toml, then the
// directory the binary was installed to.
func ResolvePath(explicitPath string) (ResolvedPath, error) {
	if explicitPath != "" {
		return ResolvedPath{Path: explicitPath, Source: SourceExplicitArg}, nil
	}
	if fromEnv := os.Getenv(EnvConfigPath); fromEnv != "" {
		return ResolvedPath{Path: fromEnv, Source: SourceEnvVar}, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ResolvedPath{}, fmt.Errorf("config: resolve working directory: %w", err)
	}
	cwdPath := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(cwdPath); err == nil {
		return ResolvedPath{Path: cwdPath, Source: SourceCurrentDir}, nil
	}

	if installed, err := InstalledPath(); err == nil {
		if _, err := os.Stat(installed); err == nil {
			return ResolvedPath{Path: installed, Source: SourceBinaryDir}, nil
		}
	}

	return ResolvedPath{Path: cwdPath, Source: SourceCurrentDir}, nil
}

// ResolutionCandidates lists every location Load would consider, for
// `gh-watch config path` output.
func ResolutionCandidates() []ResolvedPath {
	var candidates []ResolvedPath
	if fromEnv := os.Getenv(EnvConfigPath); fromEnv != "" {
		candidates = append(candidates, ResolvedPath{Path: fromEnv, Source: SourceEnvVar})
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, ResolvedPath{
			Path: filepath.Join(cwd, ConfigFileName), Source: SourceCurrentDir,
		})
	}
	if installed, err := InstalledPath(); err == nil {
		candidates = append(candidates, ResolvedPath{Path: installed, Source: SourceBinaryDir})
	}
	return candidates
}

// InstalledPath is the config path next to the gh-watch binary.
func InstalledPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("config: resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), ConfigFileName), nil
}

// StateDBPathOrDefault resolves the state database location.
func (c Config) StateDBPathOrDefault() (string, error) {
	if c.StateDBPath != "" {
		return c.StateDBPath, nil
	}
	return DefaultStateDBPath()
}

// DefaultStateDBPath is the platform state database location:
// %LOCALAPPDATA%\gh-watch\state.db on Windows,
// ~/.local/share/gh-watch/state.db elsewhere.
func DefaultStateDBPath() (string, error) {
	if runtime.GOOS == "windows" {
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			return "", fmt.Errorf("config: LOCALAPPDATA is not set")
		}
		return filepath.Join(local, "gh-watch", "state.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "gh-watch", "state.db"), nil
}

// StabilityWarnings flags risky settings without rejecting them.
func (c Config) StabilityWarnings() []string {
	var warnings []string
	if c.IntervalSeconds < 60 {
		warnings = append(warnings, fmt.Sprintf(
			"interval_seconds = %d polls aggressively; values below 60 risk GitHub rate limiting",
			c.IntervalSeconds))
	}
	if len(c.EnabledRepositories()) == 0 {
		warnings = append(warnings, "all repositories are disabled; nothing will be polled")
	}
	return warnings
}
