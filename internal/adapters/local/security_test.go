package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathTraversalProtection(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "record.json"), []byte(`{"fileName": "x"}`), 0o644))

	client, err := NewClient(tempDir)
	require.NoError(t, err)

	maliciousPaths := []string{
		"../../../etc/passwd",
		"/etc/passwd",
		"..\\..\\windows\\system32",
		"normal/../../../etc/passwd",
		"./../../etc/passwd",
		"../outside.json",
	}

	for _, path := range maliciousPaths {
		t.Run("should_reject_"+path, func(t *testing.T) {
			_, err := client.GetDocument(context.Background(), path)
			assert.ErrorContains(t, err, "invalid file path")
		})
	}

	for _, path := range []string{"record.json", "./record.json"} {
		t.Run("should_allow_"+path, func(t *testing.T) {
			data, err := client.GetDocument(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, `{"fileName": "x"}`, string(data))
		})
	}
}
