package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/feedkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/feedkeeper/internal/client/repositories/feeds"
)

// Repositories bundles the local cache repositories the client works with.
type Repositories struct {
	Feeds feeds.Repository
	DB    *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the local cache database at dsn and brings its schema up
// to date.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Feeds: feeds.NewSQLiteRepository(db),
		DB:    db,
	}, nil
}
