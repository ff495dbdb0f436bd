// Package platform defines the boundary between Daedalus and the remote simulation platform.
//
// Every operation of the SDK reaches the platform through the Client interface; nothing
// about transport leaks past it. HTTPClient is the REST implementation. Consumers depend
// on the narrow role interfaces so tests can supply small fakes.
package platform

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
}

// WorksheetStore fetches and persists worksheets.
type WorksheetStore interface {
	FetchWorksheet(ctx context.Context, tenantID, worksheetID string) (*Worksheet, error)
	PersistWorksheet(ctx context.Context, tenantID, worksheetID string, worksheet *Worksheet) (*Worksheet, error)
}

// ConfigLoader loads stored configs.
type ConfigLoader interface {
	LoadConfig(ctx context.Context, session *Session, configID string) (*Config, error)
}

// ConfigCreator stores new configs.
type ConfigCreator interface {
	CreateConfig(ctx context.Context, session *Session, configType, name string, data payload.Payload, simVersion string) (string, error)
}

// StudySubmitter submits studies for execution.
type StudySubmitter interface {
	SubmitStudy(ctx context.Context, tenantID string, submission StudySubmission) (*SubmitResult, error)
}

// StudyLoader loads studies and their jobs.
type StudyLoader interface {
	LoadStudy(ctx context.Context, session *Session, studyID string, opts LoadStudyOptions) (*Study, error)
}

// Client is the full platform surface.
type Client interface {
	Authenticator
	WorksheetStore
	ConfigLoader
	ConfigCreator
	StudySubmitter
	StudyLoader
}
