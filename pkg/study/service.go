// Package study loads studies from the platform and runs result analyses over their jobs.
package study

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/platform"
	"github.com/wehubfusion/Daedalus/pkg/results"
)

// RowResolver finds the study referenced by a worksheet row.
type RowResolver interface {
	StudyIDOfRow(ctx context.Context, worksheetID, rowName string) (string, error)
}

// Service loads studies for one session.
type Service struct {
	loader     platform.StudyLoader
	rows       RowResolver
	session    *platform.Session
	aggregator *results.Aggregator
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService creates a study service. rows may be nil when no row-based lookups are made.
func NewService(loader platform.StudyLoader, rows RowResolver, session *platform.Session) (*Service, error) {
	if loader == nil {
		return nil, sdkerrors.NewInvalidArgumentError("study loader is nil", "NIL_STUDY_LOADER")
	}
	if !session.Authenticated() {
		return nil, sdkerrors.NewInvalidArgumentError("session is nil or unauthenticated", "NIL_SESSION")
	}
	logger, _ := zap.NewProduction()
	return &Service{
		loader:     loader,
		rows:       rows,
		session:    session,
		aggregator: results.NewAggregator(logger),
		logger:     logger,
		tracer:     otel.Tracer("daedalus/study"),
	}, nil
}

// SetLogger sets a custom zap logger for the service and its aggregator
func (s *Service) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
		s.aggregator = results.NewAggregator(logger)
	}
}

// Load loads a study with everything result analysis needs.
func (s *Service) Load(ctx context.Context, studyID, simType string) (*platform.Study, error) {
	return s.load(ctx, studyID, platform.FullStudyOptions(simType))
}

func (s *Service) load(ctx context.Context, studyID string, opts platform.LoadStudyOptions) (*platform.Study, error) {
	ctx, span := s.tracer.Start(ctx, "study.load", trace.WithAttributes(
		attribute.String("study.id", studyID),
		attribute.String("study.sim_type", opts.SimType),
	))
	defer span.End()

	study, err := s.loader.LoadStudy(ctx, s.session, studyID, opts)
	if err != nil {
		err = fmt.Errorf("failed to load study '%s': %w", studyID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("study.jobs", len(study.Jobs)),
		attribute.Int("study.simulations", study.SimulationCount),
		attribute.Int("study.succeeded", study.SucceededSimulationCount),
	)
	return study, nil
}

// LoadCompletedStudy loads the study referenced by a worksheet row and requires every
// simulation in it to have succeeded.
func (s *Service) LoadCompletedStudy(ctx context.Context, worksheetID, rowName, simType string) (*platform.Study, error) {
	if s.rows == nil {
		return nil, sdkerrors.NewInvalidArgumentError("row resolver is nil", "NIL_ROW_RESOLVER")
	}
	studyID, err := s.rows.StudyIDOfRow(ctx, worksheetID, rowName)
	if err != nil {
		return nil, err
	}

	study, err := s.Load(ctx, studyID, simType)
	if err != nil {
		return nil, err
	}
	if !study.AllSucceeded() {
		s.logger.Warn("Study has unsuccessful simulations",
			zap.String("study_id", studyID),
			zap.Int("succeeded", study.SucceededSimulationCount),
			zap.Int("total", study.SimulationCount))
		return nil, &sdkerrors.IncompleteStudyError{
			StudyID:   studyID,
			Succeeded: study.SucceededSimulationCount,
			Total:     study.SimulationCount,
		}
	}
	return study, nil
}

// Stats loads the study document and summarises it.
func (s *Service) Stats(ctx context.Context, studyID string) (results.Stats, error) {
	study, err := s.load(ctx, studyID, platform.LoadStudyOptions{IncludeFullDocument: true})
	if err != nil {
		return results.Stats{}, err
	}
	return results.SummarizeStudy(study), nil
}

// NamedScalars returns the perturbed inputs and requested scalars of every job that has
// at least one of scalarIDs.
func (s *Service) NamedScalars(ctx context.Context, studyID, simType string, scalarIDs, excludedJobIDs []string) ([]results.AggregatedJobResult, error) {
	study, err := s.Load(ctx, studyID, simType)
	if err != nil {
		return nil, err
	}
	collected, err := s.aggregator.CollectNamedScalars(study.Jobs, scalarIDs, excludedJobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to collect scalars of study '%s': %w", studyID, err)
	}
	return collected, nil
}

// BoundedScalars returns every job's limited scalars with their resolved bounds.
func (s *Service) BoundedScalars(ctx context.Context, studyID, simType string, limits []results.ScalarLimit) (results.BoundedScalars, error) {
	study, err := s.Load(ctx, studyID, simType)
	if err != nil {
		return nil, err
	}
	return s.aggregator.CollectBoundedScalars(study.Jobs, limits), nil
}

// DisqualifiedJobs returns the jobs with at least one scalar outside its limits.
func (s *Service) DisqualifiedJobs(ctx context.Context, studyID, simType string, limits []results.ScalarLimit) (results.Violations, error) {
	bounded, err := s.BoundedScalars(ctx, studyID, simType, limits)
	if err != nil {
		return nil, err
	}
	violations := results.FindViolations(bounded)
	s.logger.Info("Disqualified jobs found",
		zap.String("study_id", studyID),
		zap.Int("jobs", len(bounded)),
		zap.Int("disqualified", len(violations)))
	return violations, nil
}

// MinimumScalarJob returns the job with the smallest value of scalar.
func (s *Service) MinimumScalarJob(ctx context.Context, studyID, simType, scalar string, excludedJobIDs []string) (results.JobScalar, error) {
	study, err := s.Load(ctx, studyID, simType)
	if err != nil {
		return results.JobScalar{}, err
	}
	return s.aggregator.FindMinimum(study.Jobs, scalar, excludedJobIDs)
}

// JobsAboveThreshold returns the jobs of a row's completed study whose scalar exceeds threshold.
func (s *Service) JobsAboveThreshold(ctx context.Context, worksheetID, rowName, simType, scalar string, threshold float64) ([]results.JobScalar, error) {
	study, err := s.LoadCompletedStudy(ctx, worksheetID, rowName, simType)
	if err != nil {
		return nil, err
	}
	return s.aggregator.JobsAboveThreshold(study.Jobs, scalar, threshold)
}
