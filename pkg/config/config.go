// Package config loads mirrorcollapse settings from a YAML or TOML file.
// Values resolve with precedence: CLI flags > environment > settings file > defaults.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Useroth/MirrorCollapse/pkg/github"
	"github.com/Useroth/MirrorCollapse/pkg/log"
	"github.com/Useroth/MirrorCollapse/pkg/mirror"
)

const (
	// AppDir is the directory under the user config dir holding the settings.
	AppDir = "mirrorcollapse"
	// SettingsFile is the default settings file name.
	SettingsFile = "settings.yaml"

	// PathEnv overrides the settings file location.
	PathEnv = "MIRRORCOLLAPSE_CONFIG"
	// DefaultHTTPTimeout is used when http_timeout is unset.
	DefaultHTTPTimeout = github.DefaultTimeout
)

// Settings is the persisted configuration.
type Settings struct {
	GitHubToken    string `yaml:"github_token" toml:"github_token"`
	GitHubUser     string `yaml:"github_user" toml:"github_user"`
	GitHubPassword string `yaml:"github_password" toml:"github_password"`

	// Origin and Upstream are "owner/name" references.
	Origin   string `yaml:"origin" toml:"origin"`
	Upstream string `yaml:"upstream" toml:"upstream"`

	TitlePrefix string `yaml:"title_prefix" toml:"title_prefix"`
	BodyPrefix  string `yaml:"body_prefix" toml:"body_prefix"`

	// GitHubBaseURL points at a GitHub Enterprise API. Empty means github.com.
	GitHubBaseURL string `yaml:"github_base_url" toml:"github_base_url"`

	MirrorBranch string `yaml:"mirror_branch" toml:"mirror_branch"`
	LedgerPath   string `yaml:"ledger_path" toml:"ledger_path"`
	ScanWindow   int    `yaml:"scan_window" toml:"scan_window"`

	// HTTPTimeout is a Go duration string such as "30s".
	HTTPTimeout string `yaml:"http_timeout" toml:"http_timeout"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`

	TitleTemplate string `yaml:"title_template" toml:"title_template"`
	BodyTemplate  string `yaml:"body_template" toml:"body_template"`
}

// Default returns settings with every optional key at its default.
func Default() *Settings {
	return &Settings{
		MirrorBranch: mirror.DefaultLedgerBranch,
		LedgerPath:   mirror.DefaultLedgerPath,
		ScanWindow:   mirror.DefaultScanWindow,
		HTTPTimeout:  DefaultHTTPTimeout.String(),
		LogLevel:     log.LevelInfo,
	}
}

// field binds a settings key to the struct field it fills.
type field struct {
	key string
	str func(*Settings) *string
	num func(*Settings) *int
}

var schema = []field{
	{key: "github_token", str: func(s *Settings) *string { return &s.GitHubToken }},
	{key: "github_user", str: func(s *Settings) *string { return &s.GitHubUser }},
	{key: "github_password", str: func(s *Settings) *string { return &s.GitHubPassword }},
	{key: "origin", str: func(s *Settings) *string { return &s.Origin }},
	{key: "upstream", str: func(s *Settings) *string { return &s.Upstream }},
	{key: "title_prefix", str: func(s *Settings) *string { return &s.TitlePrefix }},
	{key: "body_prefix", str: func(s *Settings) *string { return &s.BodyPrefix }},
	{key: "github_base_url", str: func(s *Settings) *string { return &s.GitHubBaseURL }},
	{key: "mirror_branch", str: func(s *Settings) *string { return &s.MirrorBranch }},
	{key: "ledger_path", str: func(s *Settings) *string { return &s.LedgerPath }},
	{key: "scan_window", num: func(s *Settings) *int { return &s.ScanWindow }},
	{key: "http_timeout", str: func(s *Settings) *string { return &s.HTTPTimeout }},
	{key: "log_level", str: func(s *Settings) *string { return &s.LogLevel }},
	{key: "title_template", str: func(s *Settings) *string { return &s.TitleTemplate }},
	{key: "body_template", str: func(s *Settings) *string { return &s.BodyTemplate }},
}

func lookup(key string) (field, bool) {
	for _, f := range schema {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// DefaultPath returns <user config dir>/mirrorcollapse/settings.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, AppDir, SettingsFile), nil
}

// ResolvePath returns the settings file to use and its source.
// Precedence: flag > MIRRORCOLLAPSE_CONFIG > default location.
func ResolvePath(flagValue string, getenv func(string) string) (string, string, error) {
	if flagValue != "" {
		return flagValue, "cli", nil
	}
	if env := getenv(PathEnv); env != "" {
		return env, "env", nil
	}
	path, err := DefaultPath()
	if err != nil {
		return "", "", err
	}
	return path, "default", nil
}

// Load reads settings from path on top of Default.
//
// Loading is best-effort and never fails: a missing, unreadable or
// unparseable file yields the defaults, and unknown keys or values of the
// wrong type are logged and skipped. Validate reports what is still missing.
func Load(path string) *Settings {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("settings file not found, using defaults", "path", path)
		} else {
			log.Warn("cannot read settings file, using defaults", "path", path, "error", err)
		}
		return s
	}

	raw, err := decode(path, data)
	if err != nil {
		log.Warn("cannot parse settings file, using defaults", "path", path, "error", err)
		return s
	}

	s.apply(raw)
	return s
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func decode(path string, data []byte) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Settings) apply(raw map[string]interface{}) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		f, ok := lookup(key)
		if !ok {
			log.Warn("ignoring unknown setting", "key", key)
			continue
		}
		if value == nil {
			continue
		}

		switch {
		case f.str != nil:
			v, ok := value.(string)
			if !ok {
				log.Warn("ignoring setting with wrong type", "key", key, "want", "string", "got", fmt.Sprintf("%T", value))
				continue
			}
			*f.str(s) = v
		case f.num != nil:
			v, ok := toInt(value)
			if !ok {
				log.Warn("ignoring setting with wrong type", "key", key, "want", "integer", "got", fmt.Sprintf("%T", value))
				continue
			}
			*f.num(s) = v
		}
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// Save writes the settings to path, as TOML when path ends in .toml and YAML
// otherwise. The file holds credentials and is created with mode 0600.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// ApplyEnv fills the token from GITHUB_TOKEN when no credentials are configured.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if s.GitHubToken != "" || s.GitHubUser != "" {
		return
	}
	if token := getenv(github.TokenEnv); token != "" {
		s.GitHubToken = token
	}
}

// Validate checks the settings needed for a run. It returns a
// *mirror.ConfigurationError naming the first offending key.
func (s *Settings) Validate() error {
	switch {
	case s.GitHubToken != "" && (s.GitHubUser != "" || s.GitHubPassword != ""):
		return &mirror.ConfigurationError{Field: "github_token", Reason: "cannot be combined with github_user/github_password"}
	case s.GitHubToken == "" && s.GitHubUser == "":
		return &mirror.ConfigurationError{Field: "github_token", Reason: fmt.Sprintf("no credentials configured (set github_token, github_user/github_password or %s)", github.TokenEnv)}
	case s.GitHubUser != "" && s.GitHubPassword == "":
		return &mirror.ConfigurationError{Field: "github_password", Reason: "required when github_user is set"}
	}

	if _, _, err := mirror.ParseRepoRef("origin", s.Origin); err != nil {
		return err
	}
	if _, _, err := mirror.ParseRepoRef("upstream", s.Upstream); err != nil {
		return err
	}
	if s.ScanWindow <= 0 {
		return &mirror.ConfigurationError{Field: "scan_window", Reason: fmt.Sprintf("must be positive, got %d", s.ScanWindow)}
	}
	if _, err := s.Timeout(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return &mirror.ConfigurationError{Field: "log_level", Reason: err.Error()}
	}
	return nil
}

// Timeout parses http_timeout. Empty selects DefaultHTTPTimeout.
func (s *Settings) Timeout() (time.Duration, error) {
	if strings.TrimSpace(s.HTTPTimeout) == "" {
		return DefaultHTTPTimeout, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s.HTTPTimeout))
	if err != nil {
		return 0, &mirror.ConfigurationError{Field: "http_timeout", Reason: err.Error()}
	}
	if d <= 0 {
		return 0, &mirror.ConfigurationError{Field: "http_timeout", Reason: "must be positive"}
	}
	return d, nil
}

// PipelineOptions maps the settings onto a pipeline run.
func (s *Settings) PipelineOptions(dryRun bool, runID string) mirror.Options {
	return mirror.Options{
		Origin:        s.Origin,
		Upstream:      s.Upstream,
		TitlePrefix:   s.TitlePrefix,
		BodyPrefix:    s.BodyPrefix,
		TitleTemplate: s.TitleTemplate,
		BodyTemplate:  s.BodyTemplate,
		LedgerBranch:  s.MirrorBranch,
		LedgerPath:    s.LedgerPath,
		ScanWindow:    s.ScanWindow,
		DryRun:        dryRun,
		RunID:         runID,
	}
}

// ResolveString returns the effective value for a string configuration field.
// Precedence: cliValue > configValue > defaultValue.
// Returns the effective value and its source ("cli", "config", or "default").
func (s *Settings) ResolveString(cliValue, configValue, defaultValue string) (string, string) {
	if cliValue != "" {
		return cliValue, "cli"
	}
	if configValue != "" {
		return configValue, "config"
	}
	return defaultValue, "default"
}

// ResolveLogLevel returns the effective log level and its source.
func (s *Settings) ResolveLogLevel(cliValue string) (string, string) {
	return s.ResolveString(cliValue, s.LogLevel, log.LevelInfo)
}
