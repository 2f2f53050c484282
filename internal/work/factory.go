package work

import (
	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/platform/devops"
	"github.com/changelog-weaver/weaver/internal/platform/github"
	"github.com/changelog-weaver/weaver/internal/summarize"
)

// NewFromConfig builds the platform client detected from project.url and
// the summarizer, then wraps them in a Work. An unsupported platform is a
// ConfigError.
func NewFromConfig(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Work, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	summarizer, err := NewSummarizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	return New(cfg, client, summarizer, logger, opts...), nil
}

// NewClient creates the platform client for cfg.Project.URL.
func NewClient(cfg *config.Config, logger *logging.Logger) (platform.Client, error) {
	info, err := platform.Detect(cfg.Project.URL)
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.Project.DateRange()
	if err != nil {
		return nil, errors.NewConfigError("invalid release dates", err).WithKey("project.from_date")
	}

	switch info.Kind {
	case platform.KindAzureDevOps:
		logger.Info("creating Azure DevOps client", "organization", info.Organization, "project", info.Ref)
		return devops.New(devops.Config{
			CollectionURL:     info.CollectionURL(),
			Project:           info.Ref,
			Query:             cfg.Project.Query,
			PAT:               cfg.Project.AccessToken,
			RepoName:          cfg.Project.RepoName,
			RootType:          cfg.Platform.RootType,
			RequestsPerSecond: cfg.Platform.RequestsPerSecond,
			Timeout:           cfg.Platform.Timeout(),
		}, logger), nil

	case platform.KindGitHub:
		logger.Info("creating GitHub client",
			"repo", info.Ref,
			"branch", cfg.Project.Branch,
			"from_tag", cfg.Project.FromTag,
			"to_tag", cfg.Project.ToTag,
		)
		rules := make([]github.TypeRule, 0, len(cfg.GitHub.TypeRules))
		for _, r := range cfg.GitHub.TypeRules {
			rules = append(rules, github.TypeRule{Type: r.Type, Labels: r.Labels})
		}
		return github.New(github.Config{
			Repo:                info.Ref,
			Token:               cfg.Project.AccessToken,
			Branch:              cfg.Project.Branch,
			FromTag:             cfg.Project.FromTag,
			ToTag:               cfg.Project.ToTag,
			From:                from,
			To:                  to,
			TypeRules:           rules,
			IncludePullRequests: cfg.GitHub.IncludePullRequests,
			RequestsPerSecond:   cfg.Platform.RequestsPerSecond,
			Timeout:             cfg.Platform.Timeout(),
		}, logger)

	default:
		return nil, errors.NewConfigError("unsupported platform "+string(info.Kind), errors.ErrUnsupportedPlatform).
			WithKey("project.url")
	}
}

// NewSummarizer returns an OpenAI summarizer when either summary gate is
// on, and summarize.Nop otherwise.
func NewSummarizer(cfg *config.Config, logger *logging.Logger) (summarize.Summarizer, error) {
	if !cfg.Model.ItemSummary && !cfg.Model.ChangelogSummary {
		return summarize.Nop{}, nil
	}
	return summarize.NewOpenAI(summarize.Config{
		APIKey:    cfg.Model.APIKey,
		BaseURL:   cfg.Model.BaseURL,
		Model:     cfg.Model.Name,
		MaxTokens: cfg.Model.MaxTokens,
	}, logger)
}
