package pipeline

import (
	"bytes"
	"fmt"

	"apkstats/pkg/models"
	"apkstats/pkg/utils"

	"github.com/goccy/go-json"
)

// DecodeRecord parses one record document. A record without a fileName takes
// the document's base name so every record carries a source identifier.
func DecodeRecord(docPath string, data []byte) (*models.ApkData, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("document %s is empty", docPath)
	}

	var record models.ApkData
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", docPath, err)
	}

	if record.FileName == "" {
		record.FileName = utils.ExtractFileName(docPath)
	}
	return &record, nil
}
