package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

const createModelsTable = `
CREATE TABLE IF NOT EXISTS workflow_models (
    row_id      TEXT PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE COLLATE NOCASE,
    json_model  BLOB NOT NULL,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
)`

const memoryDB = ":memory:"

// Compile-time interface satisfaction check.
var _ ModelStore = (*SQLiteStore)(nil)

// SQLiteStore implements ModelStore using SQLite. Models are stored as their
// JSON document keyed by model id.
type SQLiteStore struct {
	db *sql.DB
}

// connPragmas are applied by the driver to every pooled connection.
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: opens a separate database.
	if dbPath == memoryDB {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if _, err := db.Exec(createModelsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create workflow_models table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetModel retrieves a model by id.
func (s *SQLiteStore) GetModel(ctx context.Context, id string) (*model.TaskGraphModel, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT json_model FROM workflow_models WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow model: %w", err)
	}
	return decodeModel(data)
}

// ListModels returns every model in insertion order.
func (s *SQLiteStore) ListModels(ctx context.Context) ([]*model.TaskGraphModel, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT json_model FROM workflow_models ORDER BY row_id",
	)
	if err != nil {
		return nil, fmt.Errorf("list workflow models: %w", err)
	}
	defer rows.Close()

	models := []*model.TaskGraphModel{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan workflow model: %w", err)
		}
		m, err := decodeModel(data)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow models: %w", err)
	}
	return models, nil
}

// AddModel validates and inserts a new model. A model with the same id,
// ignoring case, yields ErrAlreadyExists.
func (s *SQLiteStore) AddModel(ctx context.Context, m *model.TaskGraphModel) error {
	data, err := encodeModel(m)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_models (row_id, id, json_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		model.NewID(), m.ID, data, now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, m.ID)
	}
	if err != nil {
		return fmt.Errorf("insert workflow model: %w", err)
	}
	return nil
}

// ReplaceModel validates m and stores it, overwriting any model with the
// same id. It reports whether the model was newly added. The insert and the
// overwrite are one statement, so concurrent calls for a new id cannot both
// try to insert.
func (s *SQLiteStore) ReplaceModel(ctx context.Context, m *model.TaskGraphModel) (bool, error) {
	data, err := encodeModel(m)
	if err != nil {
		return false, err
	}

	rowID := model.NewID()
	now := time.Now().UTC()

	var stored string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO workflow_models (row_id, id, json_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			id = excluded.id,
			json_model = excluded.json_model,
			updated_at = excluded.updated_at
		RETURNING row_id`,
		rowID, m.ID, data, now, now,
	).Scan(&stored)
	if err != nil {
		return false, fmt.Errorf("upsert workflow model: %w", err)
	}
	return stored == rowID, nil
}

// DeleteModel removes a model by id.
func (s *SQLiteStore) DeleteModel(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM workflow_models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete workflow model: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllModels removes every model and returns how many were removed.
func (s *SQLiteStore) DeleteAllModels(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM workflow_models")
	if err != nil {
		return 0, fmt.Errorf("delete workflow models: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

func encodeModel(m *model.TaskGraphModel) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode workflow model: %w", err)
	}
	return data, nil
}

func decodeModel(data []byte) (*model.TaskGraphModel, error) {
	var m model.TaskGraphModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode workflow model: %w", err)
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
