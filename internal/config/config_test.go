package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.Resolver.BatchSize != 10 {
		t.Errorf("Resolver.BatchSize = %d, want 10", cfg.Resolver.BatchSize)
	}
	if cfg.Resolver.MaxWaves != 25 {
		t.Errorf("Resolver.MaxWaves = %d, want 25", cfg.Resolver.MaxWaves)
	}
	if !cfg.Model.ItemSummary {
		t.Error("Model.ItemSummary should be true by default")
	}
	if !cfg.Model.ChangelogSummary {
		t.Error("Model.ChangelogSummary should be true by default")
	}
	if !cfg.Changelog.IncludeCommits {
		t.Error("Changelog.IncludeCommits should be true by default")
	}
	if cfg.Output.Folder != "Releases" {
		t.Errorf("Output.Folder = %q, want %q", cfg.Output.Folder, "Releases")
	}
	if cfg.Platform.RootType != "Epic" {
		t.Errorf("Platform.RootType = %q, want %q", cfg.Platform.RootType, "Epic")
	}
	if len(cfg.GitHub.TypeRules) == 0 {
		t.Error("GitHub.TypeRules should not be empty by default")
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() should validate, got %v", errs)
	}
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("project.name", "Weaver")
	viper.Set("project.version", "2.1.0")
	viper.Set("project.url", "https://dev.azure.com/org/project")
	viper.Set("resolver.batch_size", 4)
	viper.Set("model.item_summary", false)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Project.Name != "Weaver" || cfg.Project.Version != "2.1.0" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Resolver.BatchSize != 4 {
		t.Errorf("Resolver.BatchSize = %d, want 4", cfg.Resolver.BatchSize)
	}
	if cfg.Resolver.MaxWaves != 25 {
		t.Errorf("Resolver.MaxWaves = %d, want default 25", cfg.Resolver.MaxWaves)
	}
	if cfg.Model.ItemSummary {
		t.Error("Model.ItemSummary should be overridden to false")
	}
	if len(cfg.GitHub.TypeRules) != len(Default().GitHub.TypeRules) {
		t.Errorf("GitHub.TypeRules = %v", cfg.GitHub.TypeRules)
	}
}

func TestLoad_InvalidReturnsValidationErrors(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("resolver.batch_size", 0)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for batch_size 0")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if verrs[0].Field != "resolver.batch_size" {
		t.Errorf("Field = %q", verrs[0].Field)
	}

	if Get().Resolver.BatchSize != 10 {
		t.Error("Get() should fall back to defaults when validation fails")
	}
}

func TestBindEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	BindEnv()

	t.Setenv("ACCESS_TOKEN", "legacy-token")
	if got := viper.GetString("project.access_token"); got != "legacy-token" {
		t.Errorf("legacy env: got %q", got)
	}

	t.Setenv("WEAVER_PROJECT_ACCESS_TOKEN", "new-token")
	if got := viper.GetString("project.access_token"); got != "new-token" {
		t.Errorf("WEAVER_ env should take precedence: got %q", got)
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("changelog.include_commits"); got != "WEAVER_CHANGELOG_INCLUDE_COMMITS" {
		t.Errorf("EnvName() = %q", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "weaver") {
		t.Errorf("ConfigDir() = %q", got)
	}
	if got := ConfigFile(); got != filepath.Join("/tmp/xdg", "weaver", "config.yaml") {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestChangelogPath(t *testing.T) {
	tests := []struct {
		name    string
		project ProjectConfig
		want    string
	}{
		{"name and version", ProjectConfig{Name: "My App", Version: "1.2.0"}, filepath.Join("Releases", "My-App-v1.2.0.md")},
		{"no version", ProjectConfig{Name: "app"}, filepath.Join("Releases", "app.md")},
		{"no name", ProjectConfig{Version: "3"}, filepath.Join("Releases", "changelog-v3.md")},
		{"path separators", ProjectConfig{Name: "a/b", Version: "1/2"}, filepath.Join("Releases", "a-b-v1-2.md")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Project = tt.project
			if got := cfg.ChangelogPath(); got != tt.want {
				t.Errorf("ChangelogPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	p := ProjectConfig{FromDate: "2024-01-01", ToDate: "2024-01-31"}
	from, to, err := p.DateRange()
	if err != nil {
		t.Fatalf("DateRange() error = %v", err)
	}
	if !from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}
	if !to.Equal(time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("to = %v, want end of day", to)
	}

	p = ProjectConfig{ToDate: "2024-02-01T10:00:00Z"}
	from, to, err = p.DateRange()
	if err != nil {
		t.Fatalf("DateRange() error = %v", err)
	}
	if !from.IsZero() {
		t.Errorf("from = %v, want zero", from)
	}
	if !to.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}

	p = ProjectConfig{FromDate: "yesterday"}
	if _, _, err := p.DateRange(); err == nil {
		t.Error("DateRange() should fail for an unparseable date")
	}
}
