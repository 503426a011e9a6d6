package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"provhost/internal/modules/provider/domain"
	providerout "provhost/internal/modules/provider/port/out"
	"provhost/internal/platform/tx"
)

const (
	prefDebugIDSuffix       = "debug_id_suffix"
	prefPurgeStaleResources = "purge_stale_resources"
)

type SQLiteRecordStore struct {
	db *sql.DB
	tx tx.Manager
}

func NewSQLiteRecordStore(db *sql.DB) (providerout.RecordStore, error) {
	store := &SQLiteRecordStore{db: db, tx: tx.NewSQLManager(db)}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteRecordStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS installed_providers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  file_path TEXT NOT NULL,
  is_disabled INTEGER NOT NULL DEFAULT 0,
  is_debug INTEGER NOT NULL DEFAULT 0,
  position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create provider tables: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) List(ctx context.Context) ([]domain.InstalledRecord, error) {
	return listRecords(ctx, s.db)
}

func (s *SQLiteRecordStore) Get(ctx context.Context, id string) (domain.InstalledRecord, bool, error) {
	record := domain.InstalledRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, file_path, is_disabled, is_debug FROM installed_providers WHERE id = ?`, id,
	).Scan(&record.ID, &record.Name, &record.FilePath, &record.IsDisabled, &record.IsDebug)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InstalledRecord{}, false, nil
	}
	if err != nil {
		return domain.InstalledRecord{}, false, fmt.Errorf("query installed provider %s: %w", id, err)
	}
	return record, true, nil
}

func (s *SQLiteRecordStore) Update(ctx context.Context, fn func([]domain.InstalledRecord) ([]domain.InstalledRecord, error)) error {
	return s.tx.Within(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current, err := listRecords(ctx, tx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM installed_providers`); err != nil {
			return fmt.Errorf("reset installed providers: %w", err)
		}
		seen := map[string]bool{}
		for i, record := range next {
			if record.ID == "" {
				return fmt.Errorf("installed provider at position %d has no id", i)
			}
			if seen[record.ID] {
				return fmt.Errorf("duplicate installed provider %s", record.ID)
			}
			seen[record.ID] = true
			_, err := tx.ExecContext(ctx,
				`INSERT INTO installed_providers (id, name, file_path, is_disabled, is_debug, position) VALUES (?, ?, ?, ?, ?, ?)`,
				record.ID, record.Name, record.FilePath, record.IsDisabled, record.IsDebug, i,
			)
			if err != nil {
				return fmt.Errorf("insert installed provider %s: %w", record.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteRecordStore) Preferences(ctx context.Context) (domain.Preferences, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()
	prefs := domain.Preferences{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.Preferences{}, fmt.Errorf("scan preference: %w", err)
		}
		flag, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		switch key {
		case prefDebugIDSuffix:
			prefs.DebugIDSuffix = flag
		case prefPurgeStaleResources:
			prefs.PurgeStaleResources = flag
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Preferences{}, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

func (s *SQLiteRecordStore) SavePreferences(ctx context.Context, prefs domain.Preferences) error {
	return s.tx.Within(ctx, func(ctx context.Context, tx *sql.Tx) error {
		values := map[string]bool{
			prefDebugIDSuffix:       prefs.DebugIDSuffix,
			prefPurgeStaleResources: prefs.PurgeStaleResources,
		}
		for key, value := range values {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO preferences (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				key, strconv.FormatBool(value),
			)
			if err != nil {
				return fmt.Errorf("save preference %s: %w", key, err)
			}
		}
		return nil
	})
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRecords(ctx context.Context, q queryer) ([]domain.InstalledRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, file_path, is_disabled, is_debug FROM installed_providers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query installed providers: %w", err)
	}
	defer rows.Close()
	out := []domain.InstalledRecord{}
	for rows.Next() {
		record := domain.InstalledRecord{}
		if err := rows.Scan(&record.ID, &record.Name, &record.FilePath, &record.IsDisabled, &record.IsDebug); err != nil {
			return nil, fmt.Errorf("scan installed provider: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installed providers: %w", err)
	}
	return out, nil
}
