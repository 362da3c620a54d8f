package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dasdy/gridsync/model"
	"github.com/schollz/progressbar/v3"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	db           *sql.DB
	showProgress bool
}

func InitDBStorage(db *sql.DB) error {
	sqlStmt := `
	create table if not exists row_records(idx integer primary key, data text not null);`

	_, err := db.Exec(sqlStmt)
	if err != nil {
		slog.Error("Could not create table", "error", err, "statement", sqlStmt)

		return fmt.Errorf("could not init storage: %w", err)
	}

	return nil
}

// ConnectDB opens (or creates) the snapshot file. ":memory:" works for tests.
func ConnectDB(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}

	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if err := InitDBStorage(db); err != nil {
		db.Close()

		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// NewStorageFromPath is ConnectDB with an optional progress bar for StoreRows.
func NewStorageFromPath(path string, showProgress bool) (*SQLiteStorage, error) {
	s, err := ConnectDB(path)
	if err != nil {
		return nil, err
	}

	s.showProgress = showProgress

	return s, nil
}

// StoreRows replaces the snapshot with rows in a single transaction.
func (s *SQLiteStorage) StoreRows(rows []model.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`delete from row_records`); err != nil {
		return fmt.Errorf("could not clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`insert into row_records(idx, data) values(?, ?)`)
	if err != nil {
		return fmt.Errorf("could not prepare insert: %w", err)
	}
	defer stmt.Close()

	var bar *progressbar.ProgressBar
	if s.showProgress {
		bar = progressbar.Default(int64(len(rows)), "Storing rows...")
	}

	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("could not encode row %d: %w", i, err)
		}

		if _, err := stmt.Exec(i, string(data)); err != nil {
			return fmt.Errorf("could not store row %d: %w", i, err)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Error("could not update progress bar", "error", err)
			}
		}
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			slog.Error("could not finish progress bar", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit snapshot: %w", err)
	}

	slog.Info("Stored snapshot", "rows", len(rows))

	return nil
}

func (s *SQLiteStorage) GatherAll() ([]model.Row, error) {
	n, err := s.Count()
	if err != nil {
		return nil, err
	}

	result := make([]model.Row, 0, n)

	iterator, err := s.AllIterator()
	if err != nil {
		return nil, err
	}

	for _, row := range iterator {
		result = append(result, row)
	}

	return result, nil
}

// AllIterator yields rows in index order. Rows that fail to decode are logged and skipped.
func (s *SQLiteStorage) AllIterator() (iter.Seq2[int, model.Row], error) {
	rows, err := s.db.Query(`select idx, data from row_records order by idx`)
	if err != nil {
		return nil, fmt.Errorf("could not query snapshot: %w", err)
	}

	return func(yield func(int, model.Row) bool) {
		defer rows.Close()

		for rows.Next() {
			var (
				idx  int
				data string
			)

			if err := rows.Scan(&idx, &data); err != nil {
				slog.Error("Could not scan snapshot row", "error", err)

				return
			}

			var row model.Row
			if err := json.Unmarshal([]byte(data), &row); err != nil {
				slog.Error("Could not decode snapshot row", "index", idx, "error", err)

				continue
			}

			if !yield(idx, row) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			slog.Error("Snapshot iteration failed", "error", err)
		}
	}, nil
}

func (s *SQLiteStorage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`select count(*) from row_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("could not count snapshot rows: %w", err)
	}

	return n, nil
}

func (s *SQLiteStorage) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("Could not close storage", "error", err)
	}
}
