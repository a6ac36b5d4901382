package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"

	"gitlab.com/gitlab-org/api/client-go"
)

// Client wraps the GitLab API client for reading record documents out of a
// project
type Client struct {
	client  *gitlab.Client
	baseURL string
	token   string

	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a new GitLab client
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}

	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}

	// Retries are driven by WithRetry so both providers back off the same way
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL), gitlab.WithCustomRetryMax(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &Client{
		client:       client,
		baseURL:      baseURL,
		token:        token,
		maxRetries:   3,
		retryBackoff: time.Second,
	}, nil
}

// ListDocuments lists every blob of the project tree at branch. An empty
// branch lets GitLab pick the project default branch.
func (c *Client) ListDocuments(ctx context.Context, project, branch string) ([]models.DocumentEntry, error) {
	fields := map[string]interface{}{
		"project": project,
		"branch":  branch,
	}
	logger.Logger.WithFields(fields).Debug("Listing GitLab project documents")

	opt := &gitlab.ListTreeOptions{
		Recursive: gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{
			PerPage: 100,
		},
	}
	if branch != "" {
		opt.Ref = gitlab.Ptr(branch)
	}

	var documents []models.DocumentEntry
	for {
		nodes, resp, err := c.client.Repositories.ListTree(project, opt, gitlab.WithContext(ctx))
		if err != nil {
			logger.Logger.WithError(err).WithFields(fields).Error("Failed to fetch GitLab project tree")
			return nil, fmt.Errorf("failed to fetch repository tree: %w", err)
		}

		for _, node := range nodes {
			if node.Type != "blob" {
				continue
			}
			documents = append(documents, models.DocumentEntry{
				ID:   node.ID,
				Name: node.Name,
				Path: node.Path,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	logger.Logger.WithFields(fields).WithField("document_count", len(documents)).Debug("Listed GitLab project documents")
	return documents, nil
}

// GetDocument fetches the raw bytes of one document, retrying on rate limits
func (c *Client) GetDocument(ctx context.Context, project, docPath, branch string) ([]byte, error) {
	opt := &gitlab.GetRawFileOptions{}
	if branch != "" {
		opt.Ref = gitlab.Ptr(branch)
	}

	var data []byte
	err := c.WithRetry(ctx, c.maxRetries, func() error {
		raw, _, err := c.client.RepositoryFiles.GetRawFile(project, docPath, opt, gitlab.WithContext(ctx))
		if err != nil {
			return err
		}
		data = raw
		return nil
	})
	if err != nil {
		logger.Logger.WithError(err).WithFields(map[string]interface{}{
			"project":  project,
			"document": docPath,
		}).Debug("Failed to fetch document from GitLab")
		return nil, fmt.Errorf("failed to fetch document %s: %w", docPath, err)
	}

	return data, nil
}

// TestConnection tests the GitLab connection and authentication
func (c *Client) TestConnection(ctx context.Context) error {
	logger.Logger.WithField("base_url", c.baseURL).Debug("Testing GitLab connection")
	user, _, err := c.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		logger.Logger.WithError(err).WithField("base_url", c.baseURL).Error("Failed to authenticate with GitLab")
		return fmt.Errorf("failed to authenticate with GitLab: %w", err)
	}

	if user == nil {
		return fmt.Errorf("authentication failed: no user information returned")
	}

	logger.Logger.WithFields(map[string]interface{}{
		"username": user.Username,
		"base_url": c.baseURL,
	}).Debug("GitLab connection test successful")
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
		logger.Logger.WithError(err).WithField("attempt", i+1).Debug("Retrying GitLab request")
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var respErr *gitlab.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil {
		return false
	}
	switch respErr.Response.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
