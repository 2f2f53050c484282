package work

import (
	"testing"

	"github.com/changelog-weaver/weaver/internal/config"
	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/platform"
	"github.com/changelog-weaver/weaver/internal/summarize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name string
		url  string
		kind platform.SourceKind
	}{
		{name: "azure devops", url: "https://dev.azure.com/contoso/Fabrikam", kind: platform.NeedsResolution},
		{name: "visualstudio", url: "https://contoso.visualstudio.com/Fabrikam", kind: platform.NeedsResolution},
		{name: "github", url: "https://github.com/acme/widgets", kind: platform.PreNested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(func(c *config.Config) { c.Project.URL = tt.url })
			w, err := NewFromConfig(cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, w.SourceKind())
			assert.NotEmpty(t, w.RunID())
		})
	}
}

func TestNewFromConfig_UnsupportedPlatform(t *testing.T) {
	cfg := testConfig(func(c *config.Config) { c.Project.URL = "https://gitlab.com/acme/widgets" })

	_, err := NewFromConfig(cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedPlatform)

	var cerr *errors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "project.url", cerr.Key)
}

func TestNewSummarizer(t *testing.T) {
	off := testConfig(nil)
	s, err := NewSummarizer(off, nil)
	require.NoError(t, err)
	assert.IsType(t, summarize.Nop{}, s)

	noKey := testConfig(func(c *config.Config) { c.Model.ItemSummary = true })
	_, err = NewSummarizer(noKey, nil)
	assert.ErrorIs(t, err, errors.ErrSummarizerUnavailable)

	withKey := testConfig(func(c *config.Config) {
		c.Model.ChangelogSummary = true
		c.Model.APIKey = "sk-test"
	})
	s, err = NewSummarizer(withKey, nil)
	require.NoError(t, err)
	assert.IsType(t, &summarize.OpenAI{}, s)
}

func TestNewFromConfig_WithRunID(t *testing.T) {
	cfg := testConfig(func(c *config.Config) { c.Project.URL = "https://github.com/acme/widgets" })
	w, err := NewFromConfig(cfg, nil, WithRunID("run-42"))
	require.NoError(t, err)
	assert.Equal(t, "run-42", w.RunID())
}
