package adapters

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"apkstats/internal/adapters/github"
	"apkstats/internal/adapters/gitlab"
	"apkstats/internal/adapters/local"
	"apkstats/pkg/models"
)

// Provider reads record documents out of a corpus. sourcePath is the
// SourceInfo.FullName of the corpus and an empty branch selects the default
// branch; local providers ignore both.
type Provider interface {
	ListDocuments(ctx context.Context, sourcePath, branch string) ([]models.DocumentEntry, error)
	GetDocument(ctx context.Context, sourcePath, docPath, branch string) ([]byte, error)
	TestConnection(ctx context.Context) error
}

// GitLabProvider wraps the GitLab client to implement the Provider interface
type GitLabProvider struct {
	client *gitlab.Client
}

// NewGitLabProvider creates a new GitLab provider
func NewGitLabProvider(baseURL, token string) (*GitLabProvider, error) {
	client, err := gitlab.NewClient(baseURL, token)
	if err != nil {
		return nil, err
	}
	return &GitLabProvider{client: client}, nil
}

func (p *GitLabProvider) ListDocuments(ctx context.Context, sourcePath, branch string) ([]models.DocumentEntry, error) {
	return p.client.ListDocuments(ctx, sourcePath, branch)
}

func (p *GitLabProvider) GetDocument(ctx context.Context, sourcePath, docPath, branch string) ([]byte, error) {
	return p.client.GetDocument(ctx, sourcePath, docPath, branch)
}

func (p *GitLabProvider) TestConnection(ctx context.Context) error {
	return p.client.TestConnection(ctx)
}

// GitHubProvider wraps the GitHub client to implement the Provider interface
type GitHubProvider struct {
	client *github.Client
}

// NewGitHubProvider creates a new GitHub provider
func NewGitHubProvider(baseURL, token string) (*GitHubProvider, error) {
	client, err := github.NewClient(baseURL, token)
	if err != nil {
		return nil, err
	}
	return &GitHubProvider{client: client}, nil
}

func (p *GitHubProvider) ListDocuments(ctx context.Context, sourcePath, branch string) ([]models.DocumentEntry, error) {
	owner, repo, err := parseGitHubRepoPath(sourcePath)
	if err != nil {
		return nil, err
	}
	return p.client.ListDocuments(ctx, owner, repo, branch)
}

func (p *GitHubProvider) GetDocument(ctx context.Context, sourcePath, docPath, branch string) ([]byte, error) {
	owner, repo, err := parseGitHubRepoPath(sourcePath)
	if err != nil {
		return nil, err
	}
	return p.client.GetDocument(ctx, owner, repo, docPath, branch)
}

func (p *GitHubProvider) TestConnection(ctx context.Context) error {
	return p.client.TestConnection(ctx)
}

// LocalProvider wraps the local client to implement the Provider interface
type LocalProvider struct {
	client *local.Client
}

// NewLocalProvider creates a new local provider
func NewLocalProvider(folderPath string) (*LocalProvider, error) {
	client, err := local.NewClient(folderPath)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{client: client}, nil
}

func (p *LocalProvider) ListDocuments(ctx context.Context, _, _ string) ([]models.DocumentEntry, error) {
	return p.client.ListDocuments(ctx)
}

func (p *LocalProvider) GetDocument(ctx context.Context, _, docPath, _ string) ([]byte, error) {
	return p.client.GetDocument(ctx, docPath)
}

func (p *LocalProvider) TestConnection(ctx context.Context) error {
	return p.client.TestConnection(ctx)
}

var sshURLPattern = regexp.MustCompile(`^git@([^:]+):(.+?)(?:\.git)?$`)

// ParseSourceURL parses a corpus location. Accepted forms are a local
// directory, an https URL, an ssh URL, owner/repo and a bare project name,
// each optionally followed by #branch.
func ParseSourceURL(input string, defaultPlatform models.Platform) (*models.SourceInfo, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty source")
	}

	var branch string
	if i := strings.LastIndex(input, "#"); i >= 0 {
		input, branch = input[:i], input[i+1:]
	}

	if isLocalPath(input) {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("invalid local path: %w", err)
		}

		if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("local path does not exist or is not a directory: %s", input)
		}

		return &models.SourceInfo{
			Platform: models.PlatformLocal,
			Owner:    "local",
			Name:     filepath.Base(absPath),
			FullName: absPath,
			URL:      fmt.Sprintf("file://%s", absPath),
			Branch:   branch,
		}, nil
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		info, err := parseURL(input)
		if err != nil {
			return nil, err
		}
		if branch != "" {
			info.Branch = branch
		}
		return info, nil
	}

	if strings.HasPrefix(input, "git@") {
		info, err := parseSSHURL(input)
		if err != nil {
			return nil, err
		}
		info.Branch = branch
		return info, nil
	}

	if strings.Contains(input, "/") && !strings.Contains(input, " ") {
		parts := strings.Split(input, "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			platform := defaultPlatform
			if platform == "" {
				platform = models.PlatformGitHub
			}
			return &models.SourceInfo{
				Platform: platform,
				Owner:    parts[0],
				Name:     parts[1],
				FullName: input,
				Branch:   branch,
			}, nil
		}
	}

	platform := defaultPlatform
	if platform == "" {
		platform = models.PlatformGitLab
	}
	return &models.SourceInfo{
		Platform: platform,
		Name:     input,
		FullName: input,
		Branch:   branch,
	}, nil
}

// isLocalPath checks if the input appears to be a local filesystem path
func isLocalPath(input string) bool {
	if strings.HasPrefix(input, "/") ||
		strings.HasPrefix(input, "./") ||
		strings.HasPrefix(input, "../") ||
		strings.HasPrefix(input, "~") ||
		(len(input) > 2 && input[1] == ':' && (input[0] >= 'A' && input[0] <= 'Z' || input[0] >= 'a' && input[0] <= 'z')) {
		return true
	}

	if info, err := os.Stat(input); err == nil && info.IsDir() {
		return true
	}

	return false
}

func parseURL(input string) (*models.SourceInfo, error) {
	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Hostname() {
	case "github.com", "www.github.com":
		return parseGitHubURL(u, input)
	case "gitlab.com", "www.gitlab.com":
		return parseGitLabURL(u, input)
	default:
		// Self-hosted instances: GitLab marks its routes with /-/
		if !strings.Contains(u.Path, "/-/") && (strings.Contains(u.Path, "/tree/") || strings.Contains(u.Path, "/blob/")) {
			return parseGitHubURL(u, input)
		}
		return parseGitLabURL(u, input)
	}
}

// parseGitHubURL handles https://github.com/owner/repo[/tree/branch[/dir]]
func parseGitHubURL(u *url.URL, original string) (*models.SourceInfo, error) {
	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] == "" {
		return nil, fmt.Errorf("invalid GitHub URL format")
	}

	owner := pathParts[0]
	repo := strings.TrimSuffix(pathParts[1], ".git")

	info := &models.SourceInfo{
		Platform: models.PlatformGitHub,
		Owner:    owner,
		Name:     repo,
		FullName: fmt.Sprintf("%s/%s", owner, repo),
		URL:      original,
	}
	if len(pathParts) >= 4 && pathParts[2] == "tree" {
		info.Branch = pathParts[3]
		info.Path = strings.Join(pathParts[4:], "/")
	}
	return info, nil
}

// parseGitLabURL handles https://gitlab.com/group[/subgroup]/project[/-/tree/branch[/dir]]
func parseGitLabURL(u *url.URL, original string) (*models.SourceInfo, error) {
	projectPath, route, _ := strings.Cut(strings.Trim(u.Path, "/"), "/-/")
	projectPath = strings.TrimSuffix(projectPath, ".git")

	pathParts := strings.Split(projectPath, "/")
	if len(pathParts) < 2 {
		return nil, fmt.Errorf("invalid GitLab URL format")
	}

	info := &models.SourceInfo{
		Platform: models.PlatformGitLab,
		Owner:    pathParts[0],
		Name:     pathParts[len(pathParts)-1],
		FullName: projectPath,
		URL:      original,
	}
	if routeParts := strings.Split(route, "/"); len(routeParts) >= 2 && routeParts[0] == "tree" {
		info.Branch = routeParts[1]
		info.Path = strings.Join(routeParts[2:], "/")
	}
	return info, nil
}

// parseSSHURL handles git@host:owner/repo.git
func parseSSHURL(input string) (*models.SourceInfo, error) {
	matches := sshURLPattern.FindStringSubmatch(input)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid SSH URL format")
	}

	platform := models.PlatformGitLab
	if matches[1] == "github.com" {
		platform = models.PlatformGitHub
	}

	repoPath := matches[2]
	pathParts := strings.Split(repoPath, "/")
	if len(pathParts) < 2 {
		return nil, fmt.Errorf("invalid SSH URL format")
	}

	return &models.SourceInfo{
		Platform: platform,
		Owner:    pathParts[0],
		Name:     pathParts[len(pathParts)-1],
		FullName: repoPath,
		URL:      input,
	}, nil
}

// CreateProvider creates the provider serving a parsed source
func CreateProvider(source *models.SourceInfo, config *models.Config, token string) (Provider, error) {
	switch source.Platform {
	case models.PlatformGitLab:
		return NewGitLabProvider(config.GitLab.BaseURL, token)
	case models.PlatformGitHub:
		return NewGitHubProvider(config.GitHub.BaseURL, token)
	case models.PlatformLocal:
		return NewLocalProvider(source.FullName)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", source.Platform)
	}
}

func parseGitHubRepoPath(repoPath string) (owner, repo string, err error) {
	parts := strings.Split(repoPath, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GitHub repository path format, expected 'owner/repo'")
	}
	return parts[0], parts[1], nil
}
