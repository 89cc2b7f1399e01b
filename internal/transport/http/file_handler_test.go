package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "datapulse/internal/errors"
	"datapulse/internal/insights"
	"datapulse/internal/operations"
	"datapulse/internal/services"
	"datapulse/internal/store"
)

const testFileID = "a2f7c3de-1b2c-4d5e-8f90-123456789abc"

type mockUploader struct {
	record *store.FileRecord
	err    error
}

func (m *mockUploader) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*store.FileRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

type mockRecords struct {
	records map[string]*store.FileRecord
	err     error
}

func (m *mockRecords) Get(ctx context.Context, id string) (*store.FileRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

type mockQueue struct {
	err      error
	enqueued []string
}

func (m *mockQueue) Enqueue(ctx context.Context, fileID string) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, fileID)
	return nil
}

func newHandler(uploader Uploader, records RecordReader, queue Enqueuer) *FileHandler {
	return NewFileHandler(uploader, records, queue, []string{".csv", ".xls", ".xlsx"}, 10<<20, nil)
}

func multipartBody(t *testing.T, filename, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return &apiErr
}

func TestUploadHandlerCreated(t *testing.T) {
	record := &store.FileRecord{
		ID:         testFileID,
		Filename:   "data.csv",
		FileSize:   42,
		Status:     store.StatusUploaded,
		UploadTime: time.Now().UTC(),
		Preview:    [][]any{{"a"}, {float64(1)}},
	}
	h := newHandler(&mockUploader{record: record}, &mockRecords{}, &mockQueue{})

	body, contentType := multipartBody(t, "data.csv", "a\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testFileID, resp.FileID)
	assert.Equal(t, "uploaded", resp.Status)
	require.Len(t, resp.Preview, 2)
}

func TestUploadHandlerMissingFile(t *testing.T) {
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported type", services.ErrUnsupportedType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"too large", services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"unparsable", services.ErrUnparsable, http.StatusUnprocessableEntity, "UNPARSABLE_FILE"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&mockUploader{err: tt.err}, &mockRecords{}, &mockQueue{})

			body, contentType := multipartBody(t, "data.csv", "a\n1\n")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.Upload(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).ErrorCode)
		})
	}
}

func TestProcessHandlerAccepted(t *testing.T) {
	records := &mockRecords{records: map[string]*store.FileRecord{
		testFileID: {ID: testFileID, Status: store.StatusUploaded},
	}}
	queue := &mockQueue{}
	h := newHandler(&mockUploader{}, records, queue)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process",
		strings.NewReader(`{"file_id":"`+testFileID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Process(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{testFileID}, queue.enqueued)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, "/api/v1/ws/"+testFileID, resp.WebSocketURL)
}

func TestProcessHandlerValidation(t *testing.T) {
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing file_id", `{}`},
		{"not a uuid", `{"file_id":"abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Process(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProcessHandlerUnknownFile(t *testing.T) {
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process",
		strings.NewReader(`{"file_id":"`+testFileID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Process(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "FILE_NOT_FOUND", decodeError(t, rec).ErrorCode)
}

func TestProcessHandlerQueueErrors(t *testing.T) {
	records := &mockRecords{records: map[string]*store.FileRecord{
		testFileID: {ID: testFileID},
	}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already processing", operations.ErrAlreadyProcessing, http.StatusConflict},
		{"queue full", operations.ErrQueueFull, http.StatusServiceUnavailable},
		{"queue closed", operations.ErrQueueClosed, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&mockUploader{}, records, &mockQueue{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/process",
				strings.NewReader(`{"file_id":"`+testFileID+`"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Process(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestInsightsHandlerCompleted(t *testing.T) {
	records := &mockRecords{records: map[string]*store.FileRecord{
		testFileID: {
			ID:     testFileID,
			Status: store.StatusCompleted,
			Insights: []insights.Insight{
				{Title: "Dataset Overview", Confidence: 0.95, Category: insights.CategoryOverview},
			},
		},
	}}
	h := newHandler(&mockUploader{}, records, &mockQueue{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights?file_id="+testFileID, nil)
	rec := httptest.NewRecorder()

	h.Insights(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp InsightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Insights, 1)
	assert.Equal(t, "Dataset Overview", resp.Insights[0].Title)
}

func TestInsightsHandlerPendingFileHasEmptySlice(t *testing.T) {
	records := &mockRecords{records: map[string]*store.FileRecord{
		testFileID: {ID: testFileID, Status: store.StatusProcessing},
	}}
	h := newHandler(&mockUploader{}, records, &mockQueue{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights?file_id="+testFileID, nil)
	rec := httptest.NewRecorder()

	h.Insights(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"insights":[]`)
}

func TestInsightsHandlerMissingParam(t *testing.T) {
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	rec := httptest.NewRecorder()

	h.Insights(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusHandler(t *testing.T) {
	uploadTime := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	records := &mockRecords{records: map[string]*store.FileRecord{
		testFileID: {ID: testFileID, Filename: "data.csv", Status: store.StatusFailed, UploadTime: uploadTime},
	}}
	h := newHandler(&mockUploader{}, records, &mockQueue{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status?file_id="+testFileID, nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "data.csv", resp.Filename)
	assert.Equal(t, "2026-08-25T10:00:00Z", resp.UploadTime)
}

func TestStatusHandlerUnknownFile(t *testing.T) {
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status?file_id="+testFileID, nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Routing through the full router keeps URL params working
func TestRouterParamRouting(t *testing.T) {
	r := chi.NewRouter()
	h := newHandler(&mockUploader{}, &mockRecords{}, &mockQueue{})
	r.Get("/api/v1/status", h.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status?file_id=bogus", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
