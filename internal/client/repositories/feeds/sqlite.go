package feeds

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/feedkeeper/internal/dbx"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

var ErrNotCached = errors.New("feed not cached")

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, f *models.Feed) error {
	record, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode feed record: %w", err)
	}

	query := `INSERT INTO feeds (feed_id, record, active, deleted, fetched_at)
			values (?, ?, ?, ?, ?)
			ON CONFLICT(feed_id) DO UPDATE SET record = excluded.record,
				active = excluded.active,
				deleted = excluded.deleted,
				fetched_at = excluded.fetched_at
	`
	_, err = r.db.ExecContext(ctx, query,
		f.FeedID, string(record), f.Active, f.Deleted, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Feed, error) {
	query := `select record from feeds where deleted=0 order by feed_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select feeds: %w", err)
	}
	defer rows.Close()

	var result []models.Feed
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var f models.Feed
		if err := json.Unmarshal([]byte(record), &f); err != nil {
			return nil, fmt.Errorf("failed to decode feed record: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Feed, error) {
	query := `select record from feeds where deleted=0 and feed_id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	var record string
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, id)
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}

	f := &models.Feed{}
	if err := json.Unmarshal([]byte(record), f); err != nil {
		return nil, fmt.Errorf("failed to decode feed record: %w", err)
	}
	return f, nil
}

// DeleteByID marks a record as deleted (soft delete). It expects exactly one
// row to be affected.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	query := `update feeds set deleted=1 where feed_id=? and deleted=0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `delete from feeds`); err != nil {
		return fmt.Errorf("failed to clear feed cache: %w", err)
	}
	return nil
}

// ReplaceAll swaps the cached snapshot for a freshly fetched listing inside a
// single transaction, so readers never observe a half-replaced cache.
func ReplaceAll(ctx context.Context, db *sql.DB, fs []models.Feed) error {
	return dbx.WithTx(ctx, db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		for i := range fs {
			if err := repo.Upsert(ctx, &fs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
