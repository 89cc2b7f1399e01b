// Package store persists file records and their analysis results in
// SQLite. The orchestrator and HTTP handlers are its only consumers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"datapulse/internal/insights"
)

// Status is the processing state of a file record
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrNotFound is returned when a record id is unknown
var ErrNotFound = errors.New("file record not found")

// FileRecord is a persisted uploaded file and its processing state
type FileRecord struct {
	ID         string             `json:"id"`
	Filename   string             `json:"filename"`
	Filepath   string             `json:"filepath"`
	FileSize   int64              `json:"file_size"`
	UploadTime time.Time          `json:"upload_time"`
	Preview    [][]any            `json:"preview,omitempty"`
	Status     Status             `json:"processing_status"`
	Insights   []insights.Insight `json:"insights,omitempty"`
}

// Store provides access to persisted file records
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent runs.
	db.SetMaxOpenConns(1)
	return db, nil
}

// New creates a Store backed by db
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS files (
			id                TEXT PRIMARY KEY,
			filename          TEXT NOT NULL,
			filepath          TEXT NOT NULL,
			file_size         INTEGER NOT NULL DEFAULT 0,
			upload_time       TIMESTAMP NOT NULL,
			preview_data      TEXT,
			processing_status TEXT NOT NULL DEFAULT 'uploaded',
			insights          TEXT
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Create inserts a new file record
func (s *Store) Create(ctx context.Context, record *FileRecord) error {
	preview, err := marshalNullable(record.Preview)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	query := `
		INSERT INTO files (id, filename, filepath, file_size, upload_time, preview_data, processing_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.Filename, record.Filepath, record.FileSize,
		record.UploadTime, preview, string(record.Status))
	if err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}

	s.logger.InfoContext(ctx, "file record created",
		slog.String("file_id", record.ID),
		slog.String("filename", record.Filename))
	return nil
}

// Get retrieves a file record by id. Returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id string) (*FileRecord, error) {
	query := `
		SELECT id, filename, filepath, file_size, upload_time, preview_data, processing_status, insights
		FROM files WHERE id = ?`

	var (
		record       FileRecord
		previewJSON  sql.NullString
		insightsJSON sql.NullString
		status       string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Filename, &record.Filepath, &record.FileSize,
		&record.UploadTime, &previewJSON, &status, &insightsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file record: %w", err)
	}

	record.Status = Status(status)
	if previewJSON.Valid && previewJSON.String != "" {
		if err := json.Unmarshal([]byte(previewJSON.String), &record.Preview); err != nil {
			return nil, fmt.Errorf("failed to decode preview: %w", err)
		}
	}
	if insightsJSON.Valid && insightsJSON.String != "" {
		if err := json.Unmarshal([]byte(insightsJSON.String), &record.Insights); err != nil {
			return nil, fmt.Errorf("failed to decode insights: %w", err)
		}
	}
	return &record, nil
}

// UpdateStatus sets the processing status of a record
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET processing_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	s.logger.InfoContext(ctx, "file status updated",
		slog.String("file_id", id),
		slog.String("status", string(status)))
	return nil
}

// SaveResult stores the final insights and the terminal status in one
// write, so a completed record is never observed without its results.
func (s *Store) SaveResult(ctx context.Context, id string, status Status, results []insights.Insight) error {
	encoded, err := marshalNullable(results)
	if err != nil {
		return fmt.Errorf("failed to encode insights: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET processing_status = ?, insights = ? WHERE id = ?`,
		string(status), encoded, id)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	s.logger.InfoContext(ctx, "analysis result saved",
		slog.String("file_id", id),
		slog.String("status", string(status)),
		slog.Int("insights", len(results)))
	return nil
}

// marshalNullable encodes v as JSON, mapping empty values to SQL NULL
func marshalNullable(v any) (any, error) {
	switch value := v.(type) {
	case [][]any:
		if len(value) == 0 {
			return nil, nil
		}
	case []insights.Insight:
		if len(value) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
