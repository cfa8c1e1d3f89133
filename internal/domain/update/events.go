package update

import (
	"github.com/google/uuid"

	domainevents "github.com/narwhalmedia/appupdater/internal/domain/events"
)

// AggregateType is the aggregate type of update session events.
const AggregateType = "UpdateSession"

// Event types
const (
	EventUpdateRejected  = "UpdateRejected"
	EventUpdateStarted   = "UpdateStarted"
	EventUpdateProgress  = "UpdateProgress"
	EventUpdateFinished  = "UpdateFinished"
	EventUpdateFailed    = "UpdateFailed"
	EventUpdateCancelled = "UpdateCancelled"
)

// UpdateRejected is emitted when a start request finds a session running.
type UpdateRejected struct {
	domainevents.BaseEvent
}

func NewUpdateRejected() *UpdateRejected {
	return &UpdateRejected{
		BaseEvent: domainevents.NewBaseEvent(uuid.New(), AggregateType, EventUpdateRejected, 1),
	}
}

// UpdateStarted is emitted when the transport begins fetching.
type UpdateStarted struct {
	domainevents.BaseEvent
	URL string `json:"url"`
}

func NewUpdateStarted(sessionID uuid.UUID, url string) *UpdateStarted {
	return &UpdateStarted{
		BaseEvent: domainevents.NewBaseEvent(sessionID, AggregateType, EventUpdateStarted, 1),
		URL:       url,
	}
}

// UpdateProgress is emitted when the progress percentage changes.
type UpdateProgress struct {
	domainevents.BaseEvent
	Progress int64 `json:"progress"`
	Total    int64 `json:"total"`
	Percent  int   `json:"percent"`
}

func NewUpdateProgress(sessionID uuid.UUID, progress, total int64) *UpdateProgress {
	return &UpdateProgress{
		BaseEvent: domainevents.NewBaseEvent(sessionID, AggregateType, EventUpdateProgress, 1),
		Progress:  progress,
		Total:     total,
		Percent:   Percent(progress, total),
	}
}

// UpdateFinished is emitted when the artifact is available locally.
type UpdateFinished struct {
	domainevents.BaseEvent
	File string `json:"file"`
}

func NewUpdateFinished(sessionID uuid.UUID, file string) *UpdateFinished {
	return &UpdateFinished{
		BaseEvent: domainevents.NewBaseEvent(sessionID, AggregateType, EventUpdateFinished, 1),
		File:      file,
	}
}

// UpdateFailed is emitted when the fetch fails.
type UpdateFailed struct {
	domainevents.BaseEvent
	Error        string `json:"error"`
	RetryAllowed bool   `json:"retry_allowed"`
}

func NewUpdateFailed(sessionID uuid.UUID, err error, retryAllowed bool) *UpdateFailed {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &UpdateFailed{
		BaseEvent:    domainevents.NewBaseEvent(sessionID, AggregateType, EventUpdateFailed, 1),
		Error:        msg,
		RetryAllowed: retryAllowed,
	}
}

// UpdateCancelled is emitted when the fetch is cancelled.
type UpdateCancelled struct {
	domainevents.BaseEvent
}

func NewUpdateCancelled(sessionID uuid.UUID) *UpdateCancelled {
	return &UpdateCancelled{
		BaseEvent: domainevents.NewBaseEvent(sessionID, AggregateType, EventUpdateCancelled, 1),
	}
}
