// Package export implements one-shot page result export sinks.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// FS writes one JSON document per page result under a base directory.
type FS struct {
	baseDir string
}

// NewFS creates the base directory if needed and returns an FS exporter.
func NewFS(baseDir string) (*FS, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", baseDir, err)
	}
	return &FS{baseDir: baseDir}, nil
}

// Export writes the result as <base>/<id>.json.
func (e *FS) Export(ctx context.Context, result crawl.PageResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	target := filepath.Join(e.baseDir, result.ID+".json")
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(e.baseDir)+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected")
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write export %s: %w", target, err)
	}
	return nil
}
