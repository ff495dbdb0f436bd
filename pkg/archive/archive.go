package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/results"
)

// Report is an archived analysis of one study. Sections that were not computed stay empty.
type Report struct {
	StudyID        string                        `json:"study_id"`
	Name           string                        `json:"name"`
	GeneratedAt    time.Time                     `json:"generated_at"`
	Stats          *results.Stats                `json:"stats,omitempty"`
	Scalars        []results.AggregatedJobResult `json:"scalars,omitempty"`
	Bounded        results.BoundedScalars        `json:"bounded,omitempty"`
	Violations     results.Violations            `json:"violations,omitempty"`
	Minimum        *results.JobScalar            `json:"minimum,omitempty"`
	AboveThreshold []results.JobScalar           `json:"above_threshold,omitempty"`
}

// ReportPath returns the blob path of a study's named report
func ReportPath(studyID, name string) string {
	return path.Join("studies", studyID, name+".json")
}

// ReportArchive saves and loads reports through a BlobStorageClient.
type ReportArchive struct {
	blobs  BlobStorageClient
	logger *zap.Logger
}

// NewReportArchive creates a report archive
func NewReportArchive(blobs BlobStorageClient, logger *zap.Logger) (*ReportArchive, error) {
	if blobs == nil {
		return nil, sdkerrors.NewInvalidArgumentError("blob storage client is nil", "NIL_BLOB_CLIENT")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &ReportArchive{blobs: blobs, logger: logger}, nil
}

// Save stores the report at studies/<study>/<name>.json, replacing any previous version,
// and returns the blob URL.
func (a *ReportArchive) Save(ctx context.Context, report *Report) (string, error) {
	if report == nil {
		return "", sdkerrors.NewInvalidArgumentError("report is nil", "NIL_REPORT")
	}
	if report.StudyID == "" || report.Name == "" {
		return "", sdkerrors.NewInvalidArgumentError("report study id and name are required", "INCOMPLETE_REPORT")
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report '%s' of study '%s': %w", report.Name, report.StudyID, err)
	}

	blobPath := ReportPath(report.StudyID, report.Name)
	url, err := a.blobs.Put(ctx, blobPath, data, map[string]string{
		"study_id":     report.StudyID,
		"report":       report.Name,
		"disqualified": strconv.Itoa(len(report.Violations)),
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive report '%s' of study '%s': %w", report.Name, report.StudyID, err)
	}

	a.logger.Info("Report archived",
		zap.String("study_id", report.StudyID),
		zap.String("report", report.Name),
		zap.String("blob_path", blobPath),
		zap.Int("size_bytes", len(data)))
	return url, nil
}

// Load reads a report by blob URL or path.
func (a *ReportArchive) Load(ctx context.Context, reference string) (*Report, error) {
	data, err := a.blobs.Get(ctx, reference)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report '%s': %w", reference, err)
	}
	return &report, nil
}

// LoadReport reads the named report of a study.
func (a *ReportArchive) LoadReport(ctx context.Context, studyID, name string) (*Report, error) {
	return a.Load(ctx, ReportPath(studyID, name))
}
