package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"datapulse/internal/dataset"
	"datapulse/internal/infrastructure"
	"datapulse/internal/insights"
	"datapulse/internal/store"
	"datapulse/internal/websocket"
)

// The two steps that precede the insight stages. Together with the
// four stages they make up the six-step progress sequence.
const (
	stepParse    = "Parsing file"
	stepValidate = "Validating data"
)

// preStageSteps is the number of steps before the first insight stage
const preStageSteps = 2

// FileStore is the slice of the persistence layer the orchestrator needs.
type FileStore interface {
	Get(ctx context.Context, id string) (*store.FileRecord, error)
	UpdateStatus(ctx context.Context, id string, status store.Status) error
	SaveResult(ctx context.Context, id string, status store.Status, results []insights.Insight) error
}

// Broadcaster delivers progress events to live subscribers of a file id.
type Broadcaster interface {
	Send(fileID string, event websocket.Event)
}

// Config tunes insight selection for every run.
type Config struct {
	MinConfidence float64
	MaxInsights   int
}

// Orchestrator runs one uploaded file through the full analysis
// sequence and records the outcome.
type Orchestrator struct {
	store    FileStore
	hub      Broadcaster
	pipeline []insights.Stage
	cfg      Config
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator with dependency injection
func NewOrchestrator(fileStore FileStore, hub Broadcaster, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    fileStore,
		hub:      hub,
		pipeline: insights.Pipeline(),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// totalSteps is parse + validate + one step per insight stage
func (o *Orchestrator) totalSteps() int {
	return preStageSteps + len(o.pipeline)
}

// Run executes the full analysis sequence for a file. It never returns
// an error: every failure is recorded against the file and broadcast,
// and the worker moves on.
func (o *Orchestrator) Run(ctx context.Context, fileID string) {
	start := time.Now()
	logger := o.logger.With(slog.String("file_id", fileID))
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	logger.Info("analysis run started")

	// Stage functions are pure but a malformed table could still panic
	// deep in the math; a panic ends the run as failed, not the worker
	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, logger, fileID, NewStepError("run", fmt.Sprintf("panic: %v", r), nil))
		}
	}()

	record, err := o.store.Get(ctx, fileID)
	if err != nil {
		o.fail(ctx, logger, fileID, NewStepError("load", "failed to load file record", err))
		return
	}

	if err := o.store.UpdateStatus(ctx, fileID, store.StatusProcessing); err != nil {
		o.fail(ctx, logger, fileID, NewStepError("load", "failed to mark file processing", err))
		return
	}
	o.hub.Send(fileID, websocket.StatusUpdate(fileID, string(store.StatusProcessing),
		"Processing started", 0, nil))

	total := o.totalSteps()

	// Step 1: parse
	o.hub.Send(fileID, websocket.InsightProgress(fileID, stepParse, total, 1, 0))
	table, err := dataset.ParseFile(record.Filepath)
	if err != nil {
		o.fail(ctx, logger, fileID, NewStepError(stepParse, "failed to parse dataset", err))
		return
	}

	// Step 2: validate
	o.hub.Send(fileID, websocket.InsightProgress(fileID, stepValidate, total, 2, 0))
	if table.ColumnCount() == 0 {
		o.fail(ctx, logger, fileID, NewStepError(stepValidate, "dataset has no columns", nil))
		return
	}

	// Steps 3..n: the insight stages, in fixed order
	var raw []insights.Insight
	for i, stage := range o.pipeline {
		stepNum := preStageSteps + i + 1
		o.hub.Send(fileID, websocket.InsightProgress(fileID, stage.Label, total, stepNum, len(raw)))

		found := stage.Fn(table)
		raw = append(raw, found...)

		logger.Debug("stage finished",
			slog.String("stage", stage.ID),
			slog.Int("insights", len(found)))
	}

	selected := insights.Select(raw, o.cfg.MinConfidence, o.cfg.MaxInsights)

	// Persist before broadcasting completion so a reader woken by the
	// event always sees the stored result
	if err := o.store.SaveResult(ctx, fileID, store.StatusCompleted, selected); err != nil {
		o.fail(ctx, logger, fileID, NewStepError("persist", "failed to save results", err))
		return
	}

	elapsed := time.Since(start)
	o.hub.Send(fileID, websocket.InsightsComplete(fileID, len(selected), elapsed))

	metrics().runs.WithLabelValues(string(store.StatusCompleted)).Inc()
	metrics().duration.Observe(elapsed.Seconds())
	metrics().insightsGenerated.Add(float64(len(selected)))

	logger.Info("analysis run completed",
		slog.Int("raw_insights", len(raw)),
		slog.Int("selected_insights", len(selected)),
		slog.Duration("duration", elapsed))
}

// fail records a failed run. The status update is attempted once; if
// persistence itself fails the error is logged and the broadcast still
// goes out.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, fileID string, stepErr *StepError) {
	logger.Error("analysis run failed",
		slog.String("step", stepErr.Step),
		slog.String("error", stepErr.Error()))

	if err := o.store.UpdateStatus(ctx, fileID, store.StatusFailed); err != nil {
		logger.Error("failed to persist failed status",
			slog.String("error", err.Error()))
	}

	o.hub.Send(fileID, websocket.StatusUpdate(fileID, string(store.StatusFailed),
		"Processing failed", 0, map[string]any{
			"step":  stepErr.Step,
			"error": stepErr.Error(),
		}))

	metrics().runs.WithLabelValues(string(store.StatusFailed)).Inc()
}
