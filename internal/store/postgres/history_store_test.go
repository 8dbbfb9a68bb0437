package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

func TestHistoryStore_AppendInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewHistoryStoreWithDB(mock)
	fetchedAt := time.Unix(1700000000, 0).UTC()
	result := crawl.PageResult{
		ID:        "0190a5f0-0000-7000-8000-000000000001",
		URL:       "https://x.com/p1",
		Content:   "hello",
		Links:     []crawl.Link{{Text: "next", URL: "https://x.com/p2"}},
		Images:    []crawl.Image{{Src: "/logo.png", Alt: "logo"}},
		FetchedAt: fetchedAt,
	}

	mock.ExpectExec("INSERT INTO page_results").
		WithArgs(
			result.ID,
			result.URL,
			result.Content,
			[]byte(`[{"text":"next","url":"https://x.com/p2"}]`),
			[]byte(`[{"src":"/logo.png","alt":"logo"}]`),
			fetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_ListScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewHistoryStoreWithDB(mock)
	fetchedAt := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{"id", "url", "content", "links", "images", "fetched_at"}).
		AddRow("id-1", "https://x.com/p1", "hello",
			[]byte(`[{"text":"next","url":"https://x.com/p2"}]`),
			[]byte(`[]`),
			fetchedAt)

	mock.ExpectQuery("SELECT id, url, content, links, images, fetched_at").
		WillReturnRows(rows)

	results, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "id-1", results[0].ID)
	require.Equal(t, "https://x.com/p1", results[0].URL)
	require.Equal(t, []crawl.Link{{Text: "next", URL: "https://x.com/p2"}}, results[0].Links)
	require.Empty(t, results[0].Images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_DeleteMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewHistoryStoreWithDB(mock)

	mock.ExpectExec("DELETE FROM page_results").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.ErrorIs(t, store.Delete(context.Background(), "ghost"), crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
