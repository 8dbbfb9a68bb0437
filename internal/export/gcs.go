package export

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// GCS uploads page results to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS returns a GCS exporter writing under prefix in bucket.
func NewGCS(client *storage.Client, bucket, prefix string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if prefix == "" {
		prefix = "results"
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

// Export uploads the result as <prefix>/<id>.json.
func (e *GCS) Export(ctx context.Context, result crawl.PageResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	object := fmt.Sprintf("%s/%s.json", e.prefix, result.ID)
	writer := e.client.Bucket(e.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(payload); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
