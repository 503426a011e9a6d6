package out

import (
	"context"
	"database/sql"
	"fmt"

	"provhost/internal/modules/repository/domain"
	repositoryout "provhost/internal/modules/repository/port/out"
	"provhost/internal/platform/tx"
)

type SQLiteRepositoryStore struct {
	db *sql.DB
	tx tx.Manager
}

func NewSQLiteRepositoryStore(db *sql.DB) (repositoryout.Store, error) {
	store := &SQLiteRepositoryStore{db: db, tx: tx.NewSQLManager(db)}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteRepositoryStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS repositories (
  url TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  name TEXT NOT NULL,
  raw_link_format TEXT NOT NULL,
  position INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create repositories table: %w", err)
	}
	return nil
}

func (s *SQLiteRepositoryStore) List(ctx context.Context) ([]domain.Repository, error) {
	return listRepositories(ctx, s.db)
}

func (s *SQLiteRepositoryStore) Update(ctx context.Context, fn func([]domain.Repository) ([]domain.Repository, error)) error {
	return s.tx.Within(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current, err := listRepositories(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM repositories`); err != nil {
			return fmt.Errorf("reset repositories: %w", err)
		}
		for i, repo := range next {
			if err := repo.Validate(); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO repositories (url, owner, name, raw_link_format, position) VALUES (?, ?, ?, ?, ?)`,
				repo.URL, repo.Owner, repo.Name, repo.RawLinkFormat, i,
			)
			if err != nil {
				return fmt.Errorf("insert repository %s: %w", repo.URL, err)
			}
		}
		return nil
	})
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRepositories(ctx context.Context, q queryer) ([]domain.Repository, error) {
	rows, err := q.QueryContext(ctx, `SELECT url, owner, name, raw_link_format FROM repositories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()
	out := []domain.Repository{}
	for rows.Next() {
		repo := domain.Repository{}
		if err := rows.Scan(&repo.URL, &repo.Owner, &repo.Name, &repo.RawLinkFormat); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		out = append(out, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return out, nil
}
