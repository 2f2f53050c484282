package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete weaver configuration
type Config struct {
	Project   ProjectConfig   `mapstructure:"project" yaml:"project"`
	Platform  PlatformConfig  `mapstructure:"platform" yaml:"platform"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Prompts   PromptsConfig   `mapstructure:"prompts" yaml:"prompts"`
	Changelog ChangelogConfig `mapstructure:"changelog" yaml:"changelog"`
	Resolver  ResolverConfig  `mapstructure:"resolver" yaml:"resolver"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// ProjectConfig describes the project the changelog is generated for
type ProjectConfig struct {
	// Name is the product name shown in the changelog title
	Name string `mapstructure:"name" yaml:"name"`
	// Version is the release version, e.g. "1.4.0"
	Version string `mapstructure:"version" yaml:"version"`
	// Brief is a short description of the software, fed to the changelog summary prompt
	Brief string `mapstructure:"brief" yaml:"brief"`
	// URL is the project URL. The platform is detected from it:
	// https://github.com/<owner>/<repo>, https://dev.azure.com/<org>/<project>
	// or https://<org>.visualstudio.com/<project>
	URL string `mapstructure:"url" yaml:"url"`
	// Query is the saved query ID (Azure DevOps) selecting the release items
	Query string `mapstructure:"query" yaml:"query"`
	// AccessToken is the platform token (GitHub token or Azure DevOps PAT)
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`
	// RepoName is the git repository used for commit history (Azure DevOps)
	RepoName string `mapstructure:"repo_name" yaml:"repo_name"`
	// Branch limits commit history to a branch
	Branch string `mapstructure:"branch" yaml:"branch"`
	// FromTag and ToTag select a commit range (GitHub)
	FromTag string `mapstructure:"from_tag" yaml:"from_tag"`
	ToTag   string `mapstructure:"to_tag" yaml:"to_tag"`
	// FromDate and ToDate bound items and commits, formatted as YYYY-MM-DD or RFC 3339
	FromDate string `mapstructure:"from_date" yaml:"from_date"`
	ToDate   string `mapstructure:"to_date" yaml:"to_date"`
}

// PlatformConfig controls how platform clients talk to the API
type PlatformConfig struct {
	// RootType is the work item type treated as a hierarchy root (Azure DevOps, default: "Epic")
	RootType string `mapstructure:"root_type" yaml:"root_type"`
	// RequestsPerSecond caps API calls per second, 0 = unlimited (default: 10)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	// TimeoutSeconds is the HTTP client timeout, 0 = no timeout (default: 30)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// OtherIcon is the icon of the synthetic "Other" group
	OtherIcon string `mapstructure:"other_icon" yaml:"other_icon"`
}

// Timeout returns the HTTP timeout as a time.Duration (0 means none)
func (p *PlatformConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// GitHubConfig controls the GitHub client
type GitHubConfig struct {
	// TypeRules classify issues into changelog types by label glob patterns.
	// Rules are tried in order; the first rule with a matching label wins.
	TypeRules []TypeRule `mapstructure:"type_rules" yaml:"type_rules"`
	// IncludePullRequests adds merged pull requests to the changelog (default: true)
	IncludePullRequests bool `mapstructure:"include_pull_requests" yaml:"include_pull_requests"`
}

// TypeRule maps label patterns to a changelog type
type TypeRule struct {
	Type   string   `mapstructure:"type" yaml:"type"`
	Labels []string `mapstructure:"labels" yaml:"labels"`
}

// ModelConfig controls LLM summarization
type ModelConfig struct {
	// APIKey is the key for the OpenAI-compatible endpoint
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// BaseURL overrides the OpenAI API base URL (Azure OpenAI, Ollama, etc.)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Name is the model name (default: "gpt-4o-mini")
	Name string `mapstructure:"name" yaml:"name"`
	// ItemSummary enables per-item summaries (default: true)
	ItemSummary bool `mapstructure:"item_summary" yaml:"item_summary"`
	// ChangelogSummary enables the whole-release summary (default: true)
	ChangelogSummary bool `mapstructure:"changelog_summary" yaml:"changelog_summary"`
	// MaxTokens limits completion length, 0 = model default
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PromptsConfig holds the prompt text used for summaries
type PromptsConfig struct {
	// Item prefixes every item summary prompt
	Item string `mapstructure:"item" yaml:"item"`
	// Summary prefixes the changelog summary prompt
	Summary string `mapstructure:"summary" yaml:"summary"`
	// Notes is free text appended to the changelog summary prompt
	Notes string `mapstructure:"notes" yaml:"notes"`
}

// ChangelogConfig controls changelog content
type ChangelogConfig struct {
	// IncludeCommits appends a "Commit" group built from repository history (default: true)
	IncludeCommits bool `mapstructure:"include_commits" yaml:"include_commits"`
	// Template is a path to a custom text/template file for the Markdown output
	Template string `mapstructure:"template" yaml:"template"`
}

// ResolverConfig controls parent resolution
type ResolverConfig struct {
	// BatchSize is the number of concurrent parent fetches per wave (default: 10)
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
	// MaxWaves caps frontier re-scans; parents still missing afterwards are
	// treated as unresolvable (default: 25)
	MaxWaves int `mapstructure:"max_waves" yaml:"max_waves"`
}

// OutputConfig controls where the changelog is written
type OutputConfig struct {
	// Folder is the output directory (default: "Releases")
	Folder string `mapstructure:"folder" yaml:"folder"`
}

// LoggingConfig controls logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for weaver.log; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	// Textfile writes Prometheus metrics in text format to this path after a run
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	// Enabled exports spans to stderr (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultOtherIcon is the icon of the synthetic "Other" group.
const DefaultOtherIcon = "https://tfsproduks1.visualstudio.com/_apis/wit/workItemIcons/icon_review?color=333333&v=2"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			RootType:          "Epic",
			RequestsPerSecond: 10,
			TimeoutSeconds:    30,
			OtherIcon:         DefaultOtherIcon,
		},
		GitHub: GitHubConfig{
			TypeRules: []TypeRule{
				{Type: "Bug", Labels: []string{"bug*", "*defect*", "fix"}},
				{Type: "Feature", Labels: []string{"enhancement", "feature*"}},
				{Type: "Documentation", Labels: []string{"doc*"}},
				{Type: "Maintenance", Labels: []string{"chore*", "dependencies", "refactor*"}},
			},
			IncludePullRequests: true,
		},
		Model: ModelConfig{
			Name:             "gpt-4o-mini",
			ItemSummary:      true,
			ChangelogSummary: true,
		},
		Prompts: PromptsConfig{
			Item:    "Summarise the following work item in one sentence for a release changelog, written for end users",
			Summary: "You are writing the opening summary of release notes. The software is described as follows: ",
		},
		Changelog: ChangelogConfig{
			IncludeCommits: true,
		},
		Resolver: ResolverConfig{
			BatchSize: 10,
			MaxWaves:  25,
		},
		Output: OutputConfig{
			Folder: "Releases",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("project.name", defaults.Project.Name)
	viper.SetDefault("project.version", defaults.Project.Version)
	viper.SetDefault("project.url", defaults.Project.URL)

	viper.SetDefault("platform.root_type", defaults.Platform.RootType)
	viper.SetDefault("platform.requests_per_second", defaults.Platform.RequestsPerSecond)
	viper.SetDefault("platform.timeout_seconds", defaults.Platform.TimeoutSeconds)
	viper.SetDefault("platform.other_icon", defaults.Platform.OtherIcon)

	viper.SetDefault("github.type_rules", defaults.GitHub.TypeRules)
	viper.SetDefault("github.include_pull_requests", defaults.GitHub.IncludePullRequests)

	viper.SetDefault("model.name", defaults.Model.Name)
	viper.SetDefault("model.item_summary", defaults.Model.ItemSummary)
	viper.SetDefault("model.changelog_summary", defaults.Model.ChangelogSummary)
	viper.SetDefault("model.max_tokens", defaults.Model.MaxTokens)

	viper.SetDefault("prompts.item", defaults.Prompts.Item)
	viper.SetDefault("prompts.summary", defaults.Prompts.Summary)
	viper.SetDefault("prompts.notes", defaults.Prompts.Notes)

	viper.SetDefault("changelog.include_commits", defaults.Changelog.IncludeCommits)
	viper.SetDefault("changelog.template", defaults.Changelog.Template)

	viper.SetDefault("resolver.batch_size", defaults.Resolver.BatchSize)
	viper.SetDefault("resolver.max_waves", defaults.Resolver.MaxWaves)

	viper.SetDefault("output.folder", defaults.Output.Folder)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
}

// legacyEnv maps config keys to the environment variable names used by the
// original .env based setup, so existing CI pipelines keep working.
var legacyEnv = map[string]string{
	"project.name":              "SOLUTION_NAME",
	"project.version":           "RELEASE_VERSION",
	"project.brief":             "SOFTWARE_SUMMARY",
	"project.url":               "PROJECT_URL",
	"project.query":             "QUERY",
	"project.access_token":      "ACCESS_TOKEN",
	"project.repo_name":         "REPO_NAME",
	"project.branch":            "BRANCH",
	"project.from_tag":          "FROM_TAG",
	"project.to_tag":            "TO_TAG",
	"project.from_date":         "FROM_DATE",
	"project.to_date":           "TO_DATE",
	"model.api_key":             "GPT_API_KEY",
	"model.base_url":            "MODEL_BASE_URL",
	"model.name":                "MODEL",
	"model.item_summary":        "GET_ITEM_SUMMARY",
	"model.changelog_summary":   "GET_CHANGELOG_SUMMARY",
	"changelog.include_commits": "INCLUDE_COMMITS",
	"output.folder":             "OUTPUT_FOLDER",
}

// BindEnv binds every key to WEAVER_<KEY> and, where one exists, to its
// legacy variable name. WEAVER_ variables take precedence.
func BindEnv() {
	for key, legacy := range legacyEnv {
		_ = viper.BindEnv(key, EnvName(key), legacy)
	}
}

// EnvName returns the WEAVER_ environment variable for a config key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// EnvPrefix is the prefix of all weaver environment variables
const EnvPrefix = "WEAVER"

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "weaver")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weaver"
	}
	return filepath.Join(home, ".config", "weaver")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ChangelogPath returns the Markdown file the changelog is written to:
// <folder>/<name>-v<version>.md, with unsafe characters replaced.
func (c *Config) ChangelogPath() string {
	name := c.Project.Name
	if name == "" {
		name = "changelog"
	}
	base := unsafeFileChars.ReplaceAllString(name, "-")
	if c.Project.Version != "" {
		base += "-v" + unsafeFileChars.ReplaceAllString(c.Project.Version, "-")
	}
	return filepath.Join(c.Output.Folder, base+".md")
}

// dateLayouts are the accepted formats for project.from_date and project.to_date
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate parses a configured date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// DateRange returns the parsed from/to dates of the project. Zero values
// mean "unbounded". A date-only to_date includes the whole day.
func (p *ProjectConfig) DateRange() (from, to time.Time, err error) {
	if from, err = ParseDate(p.FromDate); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to, err = ParseDate(p.ToDate); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.IsZero() && len(p.ToDate) == len("2006-01-02") {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}
