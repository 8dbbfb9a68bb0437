package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// HistoryStore persists the page result log:
//
//	CREATE TABLE page_results (
//	    id         TEXT PRIMARY KEY,
//	    url        TEXT NOT NULL,
//	    content    TEXT NOT NULL,
//	    links      JSONB NOT NULL,
//	    images     JSONB NOT NULL,
//	    fetched_at TIMESTAMPTZ NOT NULL
//	);
type HistoryStore struct {
	db DB
}

// NewHistoryStoreWithDB wraps an existing connection.
func NewHistoryStoreWithDB(db DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append inserts one page result row.
func (s *HistoryStore) Append(ctx context.Context, result crawl.PageResult) error {
	links, err := json.Marshal(result.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	images, err := json.Marshal(result.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO page_results (id, url, content, links, images, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.URL, result.Content, links, images, result.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert page result: %w", err)
	}
	return nil
}

// List returns all results ordered by id; ids are UUIDv7, so this is
// chronological order.
func (s *HistoryStore) List(ctx context.Context) ([]crawl.PageResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, url, content, links, images, fetched_at
		FROM page_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select page results: %w", err)
	}
	defer rows.Close()

	var results []crawl.PageResult
	for rows.Next() {
		var (
			r      crawl.PageResult
			links  []byte
			images []byte
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.Content, &links, &images, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan page result: %w", err)
		}
		if err := json.Unmarshal(links, &r.Links); err != nil {
			return nil, fmt.Errorf("unmarshal links: %w", err)
		}
		if err := json.Unmarshal(images, &r.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page results: %w", err)
	}
	return results, nil
}

// Delete prunes the result with the given id.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM page_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete page result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}
