package websocket

import (
	"fmt"
	"time"
)

// Event type constants
const (
	TypeConnectionEstablished = "connection_established"
	TypeStatusUpdate          = "status_update"
	TypeInsightProgress       = "insight_progress"
	TypeInsightsComplete      = "insights_complete"
	TypePong                  = "pong"
)

// Event is one message delivered to subscribers of a file's updates.
// Fields are populated per event type; the hub stamps Timestamp on
// delivery.
type Event struct {
	Type           string         `json:"type"`
	FileID         string         `json:"file_id,omitempty"`
	Status         string         `json:"status,omitempty"`
	Message        string         `json:"message,omitempty"`
	Progress       float64        `json:"progress"`
	Details        map[string]any `json:"details,omitempty"`
	CurrentStep    string         `json:"current_step,omitempty"`
	TotalSteps     int            `json:"total_steps,omitempty"`
	CurrentStepNum int            `json:"current_step_num,omitempty"`
	InsightsFound  int            `json:"insights_found,omitempty"`
	InsightsCount  int            `json:"insights_count,omitempty"`
	ProcessingTime float64        `json:"processing_time,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
}

// stamp sets the delivery timestamp
func (e Event) stamp() Event {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return e
}

// ConnectionEstablished is sent to a subscriber right after it registers
func ConnectionEstablished(fileID string) Event {
	return Event{
		Type:    TypeConnectionEstablished,
		FileID:  fileID,
		Message: "Connected to real-time updates",
	}
}

// StatusUpdate reports a processing status change
func StatusUpdate(fileID, status, message string, progress float64, details map[string]any) Event {
	return Event{
		Type:     TypeStatusUpdate,
		FileID:   fileID,
		Status:   status,
		Message:  message,
		Progress: progress,
		Details:  details,
	}
}

// InsightProgress reports progress through the analysis steps
func InsightProgress(fileID, currentStep string, totalSteps, currentStepNum, insightsFound int) Event {
	progress := 0.0
	if totalSteps > 0 {
		progress = float64(currentStepNum) / float64(totalSteps) * 100
	}
	return Event{
		Type:           TypeInsightProgress,
		FileID:         fileID,
		CurrentStep:    currentStep,
		TotalSteps:     totalSteps,
		CurrentStepNum: currentStepNum,
		Progress:       progress,
		InsightsFound:  insightsFound,
		Message:        fmt.Sprintf("Step %d/%d: %s", currentStepNum, totalSteps, currentStep),
	}
}

// InsightsComplete reports a finished analysis run
func InsightsComplete(fileID string, insightsCount int, processingTime time.Duration) Event {
	seconds := processingTime.Seconds()
	return Event{
		Type:           TypeInsightsComplete,
		FileID:         fileID,
		Status:         "completed",
		InsightsCount:  insightsCount,
		ProcessingTime: seconds,
		Progress:       100,
		Message:        fmt.Sprintf("Analysis complete! Found %d insights in %.1fs", insightsCount, seconds),
	}
}

// Pong answers a client ping
func Pong(fileID string) Event {
	return Event{Type: TypePong, FileID: fileID}
}
