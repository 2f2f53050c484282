package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:       "relative project url",
			modify:     func(c *Config) { c.Project.URL = "github.com/owner/repo" },
			wantFields: []string{"project.url"},
		},
		{
			name:       "bad dates",
			modify:     func(c *Config) { c.Project.FromDate = "01/02/2024"; c.Project.ToDate = "soon" },
			wantFields: []string{"project.from_date", "project.to_date"},
		},
		{
			name:       "to before from",
			modify:     func(c *Config) { c.Project.FromDate = "2024-03-01"; c.Project.ToDate = "2024-02-01" },
			wantFields: []string{"project.to_date"},
		},
		{
			name:       "negative rate and timeout",
			modify:     func(c *Config) { c.Platform.RequestsPerSecond = -1; c.Platform.TimeoutSeconds = -5 },
			wantFields: []string{"platform.requests_per_second", "platform.timeout_seconds"},
		},
		{
			name: "bad type rules",
			modify: func(c *Config) {
				c.GitHub.TypeRules = []TypeRule{{Type: "", Labels: nil}, {Type: "Bug", Labels: []string{"[bug"}}}
			},
			wantFields: []string{"github.type_rules[0].type", "github.type_rules[0].labels", "github.type_rules[1].labels"},
		},
		{
			name:       "model settings",
			modify:     func(c *Config) { c.Model.MaxTokens = -1; c.Model.BaseURL = "not a url" },
			wantFields: []string{"model.max_tokens", "model.base_url"},
		},
		{
			name:       "missing template",
			modify:     func(c *Config) { c.Changelog.Template = filepath.Join(t.TempDir(), "missing.tmpl") },
			wantFields: []string{"changelog.template"},
		},
		{
			name:       "resolver bounds",
			modify:     func(c *Config) { c.Resolver.BatchSize = 0; c.Resolver.MaxWaves = 0 },
			wantFields: []string{"resolver.batch_size", "resolver.max_waves"},
		},
		{
			name:       "empty output folder",
			modify:     func(c *Config) { c.Output.Folder = " " },
			wantFields: []string{"output.folder"},
		},
		{
			name:       "unknown log level",
			modify:     func(c *Config) { c.Logging.Level = "verbose" },
			wantFields: []string{"logging.level"},
		},
		{
			name:   "log level is case insensitive",
			modify: func(c *Config) { c.Logging.Level = "DEBUG" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("Validate() returned %d errors, want %d: %v", len(errs), len(tt.wantFields), errs)
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := ValidationErrors(nil).Error(); got != "" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := one.Error(); got != "a: bad (got: 1)" {
		t.Errorf("single Error() = %q", got)
	}

	two := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}, {Field: "b", Value: "x", Message: "worse"}}
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "2. b: worse (got: x)") {
		t.Errorf("multi Error() = %q", got)
	}
}
