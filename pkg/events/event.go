package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names what happened.
type Type string

const (
	// TypeStudySubmitted is emitted after a study is created and its row persisted
	TypeStudySubmitted Type = "study.submitted"

	// TypeWorksheetReset is emitted after a worksheet is trimmed to a set of rows
	TypeWorksheetReset Type = "worksheet.reset"
)

// Event describes an orchestration step that changed platform state.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	TenantID    string            `json:"tenantId"`
	WorksheetID string            `json:"worksheetId"`
	RowName     string            `json:"rowName,omitempty"`
	StudyID     string            `json:"studyId,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType Type, tenantID, worksheetID string) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		TenantID:    tenantID,
		WorksheetID: worksheetID,
		OccurredAt:  time.Now().UTC(),
	}
}

// ToBytes serializes the event to JSON
func (e Event) ToBytes() ([]byte, error) {
	return json.Marshal(e)
}

// FromBytes deserializes an event from JSON
func FromBytes(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
