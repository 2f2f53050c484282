package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "resolver.batch_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateProject()...)
	errors = append(errors, c.validatePlatform()...)
	errors = append(errors, c.validateGitHub()...)
	errors = append(errors, c.validateModel()...)
	errors = append(errors, c.validateChangelog()...)
	errors = append(errors, c.validateResolver()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateProject() []ValidationError {
	var errors []ValidationError

	if c.Project.URL != "" {
		u, err := url.Parse(c.Project.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "project.url",
				Value:   c.Project.URL,
				Message: "must be an absolute http(s) URL",
			})
		}
	}

	from, fromErr := ParseDate(c.Project.FromDate)
	if fromErr != nil {
		errors = append(errors, ValidationError{
			Field:   "project.from_date",
			Value:   c.Project.FromDate,
			Message: "must be YYYY-MM-DD or RFC 3339",
		})
	}
	to, toErr := ParseDate(c.Project.ToDate)
	if toErr != nil {
		errors = append(errors, ValidationError{
			Field:   "project.to_date",
			Value:   c.Project.ToDate,
			Message: "must be YYYY-MM-DD or RFC 3339",
		})
	}
	if fromErr == nil && toErr == nil && !from.IsZero() && !to.IsZero() && to.Before(from) {
		errors = append(errors, ValidationError{
			Field:   "project.to_date",
			Value:   c.Project.ToDate,
			Message: "must not be before project.from_date",
		})
	}

	return errors
}

func (c *Config) validatePlatform() []ValidationError {
	var errors []ValidationError

	if c.Platform.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "platform.requests_per_second",
			Value:   c.Platform.RequestsPerSecond,
			Message: "must be non-negative (0 = unlimited)",
		})
	}
	if c.Platform.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "platform.timeout_seconds",
			Value:   c.Platform.TimeoutSeconds,
			Message: "must be non-negative (0 = no timeout)",
		})
	}

	return errors
}

func (c *Config) validateGitHub() []ValidationError {
	var errors []ValidationError

	for i, rule := range c.GitHub.TypeRules {
		field := fmt.Sprintf("github.type_rules[%d]", i)
		if strings.TrimSpace(rule.Type) == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".type",
				Value:   rule.Type,
				Message: "must not be empty",
			})
		}
		if len(rule.Labels) == 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".labels",
				Value:   rule.Labels,
				Message: "must list at least one label pattern",
			})
		}
		for _, pattern := range rule.Labels {
			if _, err := glob.Compile(strings.ToLower(pattern)); err != nil {
				errors = append(errors, ValidationError{
					Field:   field + ".labels",
					Value:   pattern,
					Message: fmt.Sprintf("invalid glob pattern: %v", err),
				})
			}
		}
	}

	return errors
}

func (c *Config) validateModel() []ValidationError {
	var errors []ValidationError

	if c.Model.MaxTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_tokens",
			Value:   c.Model.MaxTokens,
			Message: "must be non-negative",
		})
	}
	if c.Model.BaseURL != "" {
		if u, err := url.Parse(c.Model.BaseURL); err != nil || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "model.base_url",
				Value:   c.Model.BaseURL,
				Message: "must be an absolute URL",
			})
		}
	}

	return errors
}

func (c *Config) validateChangelog() []ValidationError {
	var errors []ValidationError

	if c.Changelog.Template != "" {
		if _, err := os.Stat(c.Changelog.Template); err != nil {
			errors = append(errors, ValidationError{
				Field:   "changelog.template",
				Value:   c.Changelog.Template,
				Message: "template file does not exist",
			})
		}
	}

	return errors
}

func (c *Config) validateResolver() []ValidationError {
	var errors []ValidationError

	if c.Resolver.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "resolver.batch_size",
			Value:   c.Resolver.BatchSize,
			Message: "must be at least 1",
		})
	}
	if c.Resolver.MaxWaves < 1 {
		errors = append(errors, ValidationError{
			Field:   "resolver.max_waves",
			Value:   c.Resolver.MaxWaves,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Output.Folder) == "" {
		errors = append(errors, ValidationError{
			Field:   "output.folder",
			Value:   c.Output.Folder,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
