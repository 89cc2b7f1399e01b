package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"datapulse/internal/config"
	"datapulse/internal/dataset"
	"datapulse/internal/store"
)

// Domain errors the upload surface translates to API responses.
var (
	ErrEmptyFilename   = errors.New("filename is empty")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnparsable      = errors.New("file could not be parsed")
)

// RecordCreator is the slice of the store the file service needs.
type RecordCreator interface {
	Create(ctx context.Context, record *store.FileRecord) error
}

// FileService validates uploads, writes them to disk and creates the
// file record with its preview.
type FileService struct {
	store   RecordCreator
	storage config.StorageConfig
	logger  *slog.Logger
}

// NewFileService creates a file service with dependency injection
func NewFileService(recordStore RecordCreator, storage config.StorageConfig, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{
		store:   recordStore,
		storage: storage,
		logger:  logger.With(slog.String("component", "file_service")),
	}
}

// Upload validates and stores one incoming dataset. The file lands on
// disk under a fresh id, a preview is extracted, and the record is
// persisted as uploaded. size is the declared content length; the
// actual bytes are capped at the configured limit regardless.
func (s *FileService) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*store.FileRecord, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrEmptyFilename
	}
	if !s.storage.AllowedExtension(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
	if size > s.storage.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}

	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(filename))
	destPath := filepath.Join(s.storage.UploadDir, id+ext)

	written, err := s.saveToDisk(destPath, r)
	if err != nil {
		return nil, err
	}

	table, err := dataset.ParseFile(destPath)
	if err != nil {
		// A file we cannot parse is rejected at upload time; remove
		// the orphan from disk
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	record := &store.FileRecord{
		ID:         id,
		Filename:   filepath.Base(filename),
		Filepath:   destPath,
		FileSize:   written,
		UploadTime: time.Now().UTC(),
		Preview:    dataset.Preview(table, s.storage.MaxPreviewRows),
		Status:     store.StatusUploaded,
	}

	if err := s.store.Create(ctx, record); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	s.logger.InfoContext(ctx, "file uploaded",
		slog.String("file_id", id),
		slog.String("filename", record.Filename),
		slog.Int64("size", written),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return record, nil
}

// saveToDisk streams the upload to its destination, enforcing the size
// cap on the bytes actually read.
func (s *FileService) saveToDisk(destPath string, r io.Reader) (int64, error) {
	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	// Read one byte past the limit to detect oversized bodies whose
	// declared length lied
	written, err := io.Copy(f, io.LimitReader(r, s.storage.MaxFileSize+1))
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if written > s.storage.MaxFileSize {
		os.Remove(destPath)
		return 0, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, written)
	}

	return written, nil
}
