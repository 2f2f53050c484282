package platform

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/changelog-weaver/weaver/internal/errors"
)

// Kind represents an issue tracking service
type Kind string

const (
	KindGitHub      Kind = "github"
	KindAzureDevOps Kind = "azure_devops"
	KindUnknown     Kind = "unknown"
)

// API base URLs.
const (
	GitHubAPIURL   = "https://api.github.com"
	AzureDevOpsURL = "https://dev.azure.com/"
)

// Info is what a project URL tells us about the platform
type Info struct {
	Kind Kind
	// Organization is the GitHub owner or the Azure DevOps organization
	Organization string
	// Ref is "owner/repo" on GitHub and the project name on Azure DevOps
	Ref string
	// BaseURL is the API base URL
	BaseURL string
}

// Detect determines the platform from a project URL. Supported forms:
//
//	https://github.com/<owner>/<repo>
//	https://dev.azure.com/<org>/<project>
//	https://<org>.visualstudio.com/<project>
//
// Unrecognized hosts yield a ConfigError wrapping ErrUnsupportedPlatform.
func Detect(projectURL string) (Info, error) {
	parsed, err := url.Parse(projectURL)
	if err != nil {
		return Info{Kind: KindUnknown}, errors.NewConfigError("invalid project URL", err).WithKey("project.url")
	}

	host := strings.ToLower(parsed.Host)
	parts := splitPath(parsed.Path)

	switch {
	case host == "github.com" || host == "www.github.com":
		if len(parts) < 2 {
			return Info{Kind: KindUnknown}, invalidURL(projectURL, "GitHub")
		}
		return Info{
			Kind:         KindGitHub,
			Organization: parts[0],
			Ref:          parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"),
			BaseURL:      GitHubAPIURL,
		}, nil

	case host == "dev.azure.com":
		if len(parts) < 2 {
			return Info{Kind: KindUnknown}, invalidURL(projectURL, "Azure DevOps")
		}
		return Info{
			Kind:         KindAzureDevOps,
			Organization: parts[0],
			Ref:          unescape(parts[1]),
			BaseURL:      AzureDevOpsURL,
		}, nil

	case strings.HasSuffix(host, ".visualstudio.com"):
		org := strings.TrimSuffix(host, ".visualstudio.com")
		if org == "" || len(parts) < 1 {
			return Info{Kind: KindUnknown}, invalidURL(projectURL, "Azure DevOps")
		}
		return Info{
			Kind:         KindAzureDevOps,
			Organization: org,
			Ref:          unescape(parts[0]),
			BaseURL:      fmt.Sprintf("https://%s.visualstudio.com", org),
		}, nil

	default:
		return Info{Kind: KindUnknown}, errors.NewConfigError(
			fmt.Sprintf("unable to determine platform from URL %q", projectURL),
			errors.ErrUnsupportedPlatform,
		).WithKey("project.url")
	}
}

func invalidURL(projectURL, platform string) error {
	return errors.NewConfigError(
		fmt.Sprintf("invalid %s URL %q", platform, projectURL),
		errors.ErrInvalidInput,
	).WithKey("project.url")
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(strings.Trim(p, "/"), "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// CollectionURL returns the Azure DevOps organization URL that project
// scoped API paths are appended to.
func (i Info) CollectionURL() string {
	if i.BaseURL == AzureDevOpsURL {
		return AzureDevOpsURL + i.Organization
	}
	return strings.TrimSuffix(i.BaseURL, "/")
}
