package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"
	"apkstats/pkg/utils"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com/"

// Client wraps the GitHub API client for reading record documents out of a
// repository
type Client struct {
	client  *github.Client
	baseURL string
	token   string

	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a new GitHub client
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	tokenSource := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	client := github.NewClient(oauth2.NewClient(context.Background(), tokenSource))

	if baseURL != defaultBaseURL {
		newURL, err := client.BaseURL.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL: %w", err)
		}
		client.BaseURL = newURL
		logger.Logger.WithField("base_url", client.BaseURL.String()).Debug("Using custom GitHub base URL")
	}

	return &Client{
		client:       client,
		baseURL:      baseURL,
		token:        token,
		maxRetries:   3,
		retryBackoff: time.Second,
	}, nil
}

// DefaultBranch returns the default branch of owner/repo
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	repository, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("failed to fetch repository %s/%s: %w", owner, repo, err)
	}
	if branch := repository.GetDefaultBranch(); branch != "" {
		return branch, nil
	}
	return "main", nil
}

// ListDocuments lists every blob of the repository tree at branch. An empty
// branch selects the repository default branch.
func (c *Client) ListDocuments(ctx context.Context, owner, repo, branch string) ([]models.DocumentEntry, error) {
	fields := map[string]interface{}{
		"owner":      owner,
		"repository": repo,
		"branch":     branch,
	}
	logger.Logger.WithFields(fields).Debug("Listing GitHub repository documents")

	targetBranch := branch
	if targetBranch == "" {
		var err error
		if targetBranch, err = c.DefaultBranch(ctx, owner, repo); err != nil {
			return nil, err
		}
	}

	tree, _, err := c.client.Git.GetTree(ctx, owner, repo, targetBranch, true)
	if err != nil {
		logger.Logger.WithError(err).WithFields(fields).Error("Failed to fetch GitHub repository tree")
		return nil, fmt.Errorf("failed to fetch repository tree: %w", err)
	}
	if tree.GetTruncated() {
		logger.Logger.WithFields(fields).Warn("GitHub truncated the repository tree, some documents are missing")
	}

	var documents []models.DocumentEntry
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		documents = append(documents, models.DocumentEntry{
			ID:   entry.GetSHA(),
			Name: utils.ExtractFileName(entry.GetPath()),
			Path: entry.GetPath(),
			Size: int64(entry.GetSize()),
		})
	}

	logger.Logger.WithFields(fields).WithField("document_count", len(documents)).Debug("Listed GitHub repository documents")
	return documents, nil
}

// GetDocument fetches the raw bytes of one document, retrying on rate limits
func (c *Client) GetDocument(ctx context.Context, owner, repo, docPath, branch string) ([]byte, error) {
	opts := &github.RepositoryContentGetOptions{Ref: branch}

	var content string
	err := c.WithRetry(ctx, c.maxRetries, func() error {
		fileContent, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, docPath, opts)
		if err != nil {
			return err
		}
		if fileContent == nil {
			return fmt.Errorf("%s is not a file", docPath)
		}
		content, err = fileContent.GetContent()
		return err
	})
	if err != nil {
		logger.Logger.WithError(err).WithFields(map[string]interface{}{
			"owner":      owner,
			"repository": repo,
			"document":   docPath,
		}).Debug("Failed to fetch document from GitHub")
		return nil, fmt.Errorf("failed to fetch document %s: %w", docPath, err)
	}

	return []byte(content), nil
}

// TestConnection tests the GitHub connection and authentication
func (c *Client) TestConnection(ctx context.Context) error {
	logger.Logger.WithField("base_url", c.baseURL).Debug("Testing GitHub connection")

	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logger.Logger.WithError(err).WithFields(map[string]interface{}{
			"base_url":    c.baseURL,
			"status_code": status,
		}).Error("Failed to authenticate with GitHub")
		return fmt.Errorf("failed to authenticate with GitHub: %w", err)
	}

	if user == nil {
		return fmt.Errorf("authentication failed: no user information returned")
	}

	logger.Logger.WithFields(map[string]interface{}{
		"username": user.GetLogin(),
		"base_url": c.baseURL,
	}).Debug("GitHub connection test successful")
	return nil
}

// WithRetry runs fn until it succeeds, fails with a non retryable error or
// maxRetries retries are spent. Backoff grows quadratically.
func (c *Client) WithRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(i*i) * c.retryBackoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		logger.Logger.WithError(err).WithField("attempt", i+1).Debug("Retrying GitHub request")
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
