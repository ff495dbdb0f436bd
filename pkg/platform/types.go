package platform

import (
	"encoding/json"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// ExplorationConfigType is the config type of a parameter sweep definition.
// Exploration payloads sit at the top level of a study body instead of inside simConfig.
const ExplorationConfigType = "exploration"

// Credentials identify a platform user and the application acting for it.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	TenantName   string `json:"tenantName,omitempty"`
}

// Session is an authenticated platform session.
type Session struct {
	TenantID    string
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

// Authenticated reports whether the session carries a token.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// Worksheet is a named, remotely persisted collection of rows.
// Properties and label definitions are carried through untouched.
type Worksheet struct {
	Name       string           `json:"name"`
	Properties json.RawMessage  `json:"properties,omitempty"`
	Outline    WorksheetOutline `json:"outline"`
	Notes      string           `json:"notes"`
}

// WorksheetOutline holds the rows of a worksheet and its shared label definitions.
type WorksheetOutline struct {
	Rows             []Row           `json:"rows"`
	LabelDefinitions json.RawMessage `json:"labelDefinitions,omitempty"`
}

// Row is a named worksheet entry referencing configs and optionally one study.
type Row struct {
	Name    string      `json:"name"`
	Configs []RowConfig `json:"configs"`
	Study   *RowStudy   `json:"study,omitempty"`
}

// HasStudy reports whether the row references a study.
func (r Row) HasStudy() bool {
	return r.Study != nil && r.Study.Reference != nil
}

// StudyID returns the referenced study id, or "" when the row has none.
func (r Row) StudyID() string {
	if !r.HasStudy() {
		return ""
	}
	return r.Study.Reference.TargetID
}

// RowConfig is a typed reference from a row to a stored config.
type RowConfig struct {
	ConfigType       string          `json:"configType"`
	Reference        ConfigReference `json:"reference"`
	InheritReference bool            `json:"inheritReference"`
}

// ConfigID returns the id of the referenced config.
func (c RowConfig) ConfigID() string {
	return c.Reference.Tenant.TargetID
}

// ConfigReference locates a config.
type ConfigReference struct {
	Tenant TenantReference `json:"tenant"`
}

// TenantReference points at a document owned by a tenant.
type TenantReference struct {
	TenantID string `json:"tenantId"`
	TargetID string `json:"targetId"`
}

// RowStudy is a row's reference to a study.
type RowStudy struct {
	Reference *TenantReference `json:"reference,omitempty"`
}

// NewRowConfig builds a row config referencing configID in tenantID.
func NewRowConfig(configType, tenantID, configID string) RowConfig {
	return RowConfig{
		ConfigType: configType,
		Reference: ConfigReference{
			Tenant: TenantReference{TenantID: tenantID, TargetID: configID},
		},
		InheritReference: false,
	}
}

// NewRowStudy builds a row study reference.
func NewRowStudy(tenantID, studyID string) *RowStudy {
	return &RowStudy{Reference: &TenantReference{TenantID: tenantID, TargetID: studyID}}
}

// Config is a stored, typed configuration.
type Config struct {
	ConfigID string         `json:"configId"`
	Document ConfigDocument `json:"document"`
}

// ConfigDocument is the stored body of a config.
type ConfigDocument struct {
	Data    payload.Payload `json:"data"`
	UserID  string          `json:"userId"`
	Name    string          `json:"name"`
	SubType string          `json:"subType"`
}

// NewConfig is the body of a config creation request.
type NewConfig struct {
	ConfigType string          `json:"configType"`
	Name       string          `json:"name"`
	Data       payload.Payload `json:"data"`
	SimVersion string          `json:"simVersion"`
}

// StudySubmission is the body of a study creation request.
type StudySubmission struct {
	Name        string       `json:"name"`
	Study       StudyBody    `json:"study"`
	IsTransient bool         `json:"isTransient"`
	StudyType   string       `json:"studyType"`
	Sources     []DataSource `json:"sources"`
	Notes       string       `json:"notes"`
	SimVersion  string       `json:"simVersion"`
}

// StudyBody is what the platform executes: the sim types, one payload per
// non-exploration config type, and an optional exploration payload.
type StudyBody struct {
	SimTypes    []string                   `json:"simTypes"`
	SimConfig   map[string]payload.Payload `json:"simConfig"`
	Exploration payload.Payload            `json:"exploration,omitempty"`
}

// DataSource records which config fed a study.
type DataSource struct {
	ConfigType string `json:"configType"`
	UserID     string `json:"userId"`
	ConfigID   string `json:"configId"`
	Name       string `json:"name"`
}

// SubmitResult is the response of a study creation.
type SubmitResult struct {
	StudyID string `json:"studyId"`
}

// LoadStudyOptions selects what a study load returns.
type LoadStudyOptions struct {
	SimType               string
	IncludeFullDocument   bool
	IncludeJobMetadata    bool
	IncludeScalarResults  bool
	IncludeVectorMetadata bool
}

// FullStudyOptions returns options that request everything the analysis needs.
func FullStudyOptions(simType string) LoadStudyOptions {
	return LoadStudyOptions{
		SimType:               simType,
		IncludeFullDocument:   true,
		IncludeJobMetadata:    true,
		IncludeScalarResults:  true,
		IncludeVectorMetadata: true,
	}
}

// Study is a remote simulation run-group.
type Study struct {
	Document                 StudyDocument `json:"document"`
	SimulationCount          int           `json:"simulationCount"`
	SucceededSimulationCount int           `json:"succeededSimulationCount"`
	Jobs                     []Job         `json:"jobs"`
}

// AllSucceeded reports whether every simulation of the study succeeded.
func (s *Study) AllSucceeded() bool {
	return s.SucceededSimulationCount == s.SimulationCount
}

// StudyDocument is the stored study. Data is kept raw and read by path.
type StudyDocument struct {
	DocumentID string          `json:"documentId"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Job is one simulation execution within a study.
type Job struct {
	DocumentID string             `json:"documentId"`
	ScalarData map[string]float64 `json:"scalarData,omitempty"`
	// Data is the job's study document data; it carries the "changes" list of
	// perturbed inputs when the study has an exploration.
	Data json.RawMessage `json:"data,omitempty"`
}

// Scalar returns the job's value for id.
func (j Job) Scalar(id string) (float64, bool) {
	v, ok := j.ScalarData[id]
	return v, ok
}
