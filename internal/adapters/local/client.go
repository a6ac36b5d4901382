package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"apkstats/pkg/logger"
	"apkstats/pkg/models"
)

// Client reads record documents out of a local folder
type Client struct {
	basePath string
}

// NewClient creates a new local folder client
func NewClient(basePath string) (*Client, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %s is not a directory", basePath)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &Client{
		basePath: absPath,
	}, nil
}

// ListDocuments walks the folder in lexical order and returns every regular
// file. Symlinks are never followed.
func (c *Client) ListDocuments(ctx context.Context) ([]models.DocumentEntry, error) {
	var documents []models.DocumentEntry

	err := filepath.WalkDir(c.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Logger.WithError(err).WithField("path", path).Debug("Skipping unreadable path")
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(c.basePath, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		documents = append(documents, models.DocumentEntry{
			ID:   relPath,
			Name: d.Name(),
			Path: relPath,
			Size: size,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return documents, nil
}

// sanitizePath resolves docPath inside the base folder and rejects anything
// that would escape it
func (c *Client) sanitizePath(docPath string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(docPath))

	if filepath.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") || strings.Contains(docPath, `\`) {
		return "", fmt.Errorf("invalid file path: %s", docPath)
	}

	fullPath := filepath.Join(c.basePath, cleanPath)
	if !strings.HasPrefix(fullPath, c.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path: %s", docPath)
	}

	return fullPath, nil
}

// GetDocument reads one document relative to the folder
func (c *Client) GetDocument(ctx context.Context, docPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := c.sanitizePath(docPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", docPath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", docPath)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", docPath)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", docPath, err)
	}
	return data, nil
}

// TestConnection tests if the local folder is accessible
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := os.ReadDir(c.basePath); err != nil {
		return fmt.Errorf("cannot access local folder: %w", err)
	}
	return nil
}

// GetBasePath returns the base path of the local folder
func (c *Client) GetBasePath() string {
	return c.basePath
}
