package http

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "datapulse/internal/errors"
	"datapulse/internal/insights"
	"datapulse/internal/operations"
	"datapulse/internal/services"
	"datapulse/internal/store"
)

// Uploader is the slice of the file service the handler needs.
type Uploader interface {
	Upload(ctx context.Context, filename string, size int64, r io.Reader) (*store.FileRecord, error)
}

// RecordReader looks up persisted file records.
type RecordReader interface {
	Get(ctx context.Context, id string) (*store.FileRecord, error)
}

// Enqueuer schedules analysis runs.
type Enqueuer interface {
	Enqueue(ctx context.Context, fileID string) error
}

// FileHandler handles upload, process, insights and status requests
type FileHandler struct {
	uploader Uploader
	records  RecordReader
	queue    Enqueuer
	allowed  []string
	maxSize  int64
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFileHandler creates a file handler with dependency injection
func NewFileHandler(uploader Uploader, records RecordReader, queue Enqueuer, allowed []string, maxSize int64, logger *slog.Logger) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{
		uploader: uploader,
		records:  records,
		queue:    queue,
		allowed:  allowed,
		maxSize:  maxSize,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "file_handler")),
	}
}

// UploadResponse is the payload returned after a successful upload
type UploadResponse struct {
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename"`
	FileSize   int64   `json:"file_size"`
	Status     string  `json:"status"`
	Preview    [][]any `json:"preview"`
	UploadTime string  `json:"upload_time"`
}

// Upload handles POST /api/v1/upload
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Cap the multipart body a little above the file limit to leave
	// room for the form framing
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, apierrors.ErrValidation("file", "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	record, err := h.uploader.Upload(r.Context(), header.Filename, header.Size, file)
	if err != nil {
		render.Render(w, r, h.uploadError(header.Filename, header.Size, err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		FileID:     record.ID,
		Filename:   record.Filename,
		FileSize:   record.FileSize,
		Status:     string(record.Status),
		Preview:    record.Preview,
		UploadTime: record.UploadTime.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// uploadError maps file service failures to API errors
func (h *FileHandler) uploadError(filename string, size int64, err error) *apierrors.APIError {
	switch {
	case stderrors.Is(err, services.ErrEmptyFilename):
		return apierrors.ErrValidation("file", "filename is empty")
	case stderrors.Is(err, services.ErrUnsupportedType):
		return apierrors.UnsupportedFileError(extOf(filename), h.allowed)
	case stderrors.Is(err, services.ErrFileTooLarge):
		return apierrors.FileTooLargeError(size, h.maxSize)
	case stderrors.Is(err, services.ErrUnparsable):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity,
			"UNPARSABLE_FILE", "File could not be parsed", err.Error())
	default:
		h.logger.Error("upload failed", slog.String("error", err.Error()))
		return apierrors.ErrInternalServer
	}
}

func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ProcessRequest is the body of POST /api/v1/process
type ProcessRequest struct {
	FileID string `json:"file_id" validate:"required,uuid4"`
}

// Bind implements render.Binder
func (p *ProcessRequest) Bind(r *http.Request) error {
	return nil
}

// ProcessResponse acknowledges an enqueued run
type ProcessResponse struct {
	FileID       string `json:"file_id"`
	Status       string `json:"status"`
	WebSocketURL string `json:"websocket_url"`
}

// Process handles POST /api/v1/process
func (h *FileHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.ErrValidation("file_id", "file_id must be a UUID"))
		return
	}

	if _, err := h.records.Get(r.Context(), req.FileID); err != nil {
		h.renderLookupError(w, r, req.FileID, err)
		return
	}

	if err := h.queue.Enqueue(r.Context(), req.FileID); err != nil {
		switch {
		case stderrors.Is(err, operations.ErrAlreadyProcessing):
			render.Render(w, r, apierrors.ErrProcessingRunning)
		case stderrors.Is(err, operations.ErrQueueFull), stderrors.Is(err, operations.ErrQueueClosed):
			render.Render(w, r, apierrors.ErrServiceUnavailable)
		default:
			h.logger.Error("enqueue failed",
				slog.String("file_id", req.FileID),
				slog.String("error", err.Error()))
			render.Render(w, r, apierrors.ErrInternalServer)
		}
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, ProcessResponse{
		FileID:       req.FileID,
		Status:       string(store.StatusProcessing),
		WebSocketURL: "/api/v1/ws/" + req.FileID,
	})
}

// InsightsResponse carries the stored analysis result for a file
type InsightsResponse struct {
	FileID   string             `json:"file_id"`
	Status   string             `json:"status"`
	Count    int                `json:"count"`
	Insights []insights.Insight `json:"insights"`
}

// Insights handles GET /api/v1/insights?file_id=
func (h *FileHandler) Insights(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.records.Get(r.Context(), fileID)
	if err != nil {
		h.renderLookupError(w, r, fileID, err)
		return
	}

	result := record.Insights
	if result == nil {
		result = []insights.Insight{}
	}

	render.JSON(w, r, InsightsResponse{
		FileID:   record.ID,
		Status:   string(record.Status),
		Count:    len(result),
		Insights: result,
	})
}

// StatusResponse reports a file's processing state
type StatusResponse struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	UploadTime string `json:"upload_time"`
}

// Status handles GET /api/v1/status?file_id=
func (h *FileHandler) Status(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.records.Get(r.Context(), fileID)
	if err != nil {
		h.renderLookupError(w, r, fileID, err)
		return
	}

	render.JSON(w, r, StatusResponse{
		FileID:     record.ID,
		Filename:   record.Filename,
		Status:     string(record.Status),
		UploadTime: record.UploadTime.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// fileIDParam extracts and validates the file_id query parameter
func (h *FileHandler) fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := r.URL.Query().Get("file_id")
	if fileID == "" {
		render.Render(w, r, apierrors.ErrValidation("file_id", "query parameter file_id is required"))
		return "", false
	}
	if _, err := uuid.Parse(fileID); err != nil {
		render.Render(w, r, apierrors.ErrValidation("file_id", "file_id must be a UUID"))
		return "", false
	}
	return fileID, true
}

// renderLookupError maps store lookup failures to API errors
func (h *FileHandler) renderLookupError(w http.ResponseWriter, r *http.Request, fileID string, err error) {
	if stderrors.Is(err, store.ErrNotFound) {
		render.Render(w, r, apierrors.FileNotFoundError(fileID))
		return
	}
	h.logger.Error("record lookup failed",
		slog.String("file_id", fileID),
		slog.String("error", err.Error()))
	render.Render(w, r, apierrors.ErrInternalServer)
}
