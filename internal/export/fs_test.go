package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

func TestFSExportWritesDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	exporter, err := NewFS(dir)
	require.NoError(t, err)

	result := crawl.PageResult{
		ID:        "0190a5f0-0000-7000-8000-000000000001",
		URL:       "https://x.com/p1",
		Content:   "hello",
		Links:     []crawl.Link{{Text: "next", URL: "https://x.com/p2"}},
		FetchedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, exporter.Export(context.Background(), result))

	raw, err := os.ReadFile(filepath.Join(dir, result.ID+".json"))
	require.NoError(t, err)

	var got crawl.PageResult
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, result, got)
}

func TestFSExportRejectsTraversal(t *testing.T) {
	t.Parallel()

	exporter, err := NewFS(t.TempDir())
	require.NoError(t, err)

	err = exporter.Export(context.Background(), crawl.PageResult{ID: "../escape"})
	require.Error(t, err)
}

func TestFSExportHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	exporter, err := NewFS(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, exporter.Export(ctx, crawl.PageResult{ID: "id-1"}))
}

func TestNewFSRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewFS("  ")
	require.Error(t, err)
}
