// Package worksheet reads and rewrites worksheets: locating rows, trimming worksheets and
// running a row's configs as a new study that is appended to the worksheet.
//
// No version check guards a worksheet between fetch and persist. Callers that may touch
// the same worksheet concurrently must serialize access themselves.
package worksheet

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// Platform is the part of the platform the worksheet service uses.
type Platform interface {
	platform.WorksheetStore
	platform.ConfigLoader
	platform.StudySubmitter
}

// Service performs worksheet operations for one authenticated session.
type Service struct {
	platform Platform
	session  *platform.Session
	notifier events.Notifier
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates a worksheet service.
func NewService(p Platform, session *platform.Session) (*Service, error) {
	if p == nil {
		return nil, sdkerrors.NewInvalidArgumentError("platform client is nil", "NIL_PLATFORM")
	}
	if !session.Authenticated() {
		return nil, sdkerrors.NewInvalidArgumentError("session is nil or unauthenticated", "NIL_SESSION")
	}
	logger, _ := zap.NewProduction()
	return &Service{
		platform: p,
		session:  session,
		logger:   logger,
		tracer:   otel.Tracer("daedalus/worksheet"),
	}, nil
}

// SetLogger sets a custom zap logger for the service
func (s *Service) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNotifier sets where orchestration events are sent. Without one no events are emitted.
func (s *Service) SetNotifier(n events.Notifier) {
	s.notifier = n
}

func (s *Service) tenantID() string {
	return s.session.TenantID
}

// FindRow returns the first row named rowName.
func (s *Service) FindRow(ctx context.Context, worksheetID, rowName string) (*platform.Row, error) {
	ws, err := s.platform.FetchWorksheet(ctx, s.tenantID(), worksheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch worksheet '%s': %w", worksheetID, err)
	}
	return findRow(ws, worksheetID, rowName)
}

func findRow(ws *platform.Worksheet, worksheetID, rowName string) (*platform.Row, error) {
	for i := range ws.Outline.Rows {
		if ws.Outline.Rows[i].Name == rowName {
			row := ws.Outline.Rows[i]
			return &row, nil
		}
	}
	return nil, sdkerrors.NewNotFoundError(
		fmt.Sprintf("worksheet row '%s' not found in worksheet with ID '%s'", rowName, worksheetID),
		"ROW_NOT_FOUND")
}

// RowHasStudy reports whether row references a study.
func RowHasStudy(row platform.Row) bool {
	return row.HasStudy()
}

// StudyIDOfRow returns the id of the study referenced by the named row.
func (s *Service) StudyIDOfRow(ctx context.Context, worksheetID, rowName string) (string, error) {
	row, err := s.FindRow(ctx, worksheetID, rowName)
	if err != nil {
		return "", err
	}
	if !RowHasStudy(*row) {
		return "", sdkerrors.NewNotFoundError(
			fmt.Sprintf("worksheet row '%s' does not have a study reference", rowName),
			"ROW_STUDY_NOT_FOUND")
	}
	return row.StudyID(), nil
}

// ConfigOfType loads the config of configType referenced by the named row.
func (s *Service) ConfigOfType(ctx context.Context, worksheetID, rowName, configType string) (*platform.Config, error) {
	row, err := s.FindRow(ctx, worksheetID, rowName)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(row.Configs, func(c platform.RowConfig) bool {
		return c.ConfigType == configType
	})
	if idx < 0 {
		return nil, sdkerrors.NewNotFoundError(
			fmt.Sprintf("config with type '%s' not found in worksheet row '%s'", configType, rowName),
			"CONFIG_TYPE_NOT_FOUND")
	}
	return s.loadConfig(ctx, row.Configs[idx].ConfigID())
}

// ResetWorksheet keeps only the rows named in keepRowNames, in their current order.
// Name, properties, notes and label definitions are preserved.
func (s *Service) ResetWorksheet(ctx context.Context, worksheetID string, keepRowNames []string) (*platform.Worksheet, error) {
	ws, err := s.platform.FetchWorksheet(ctx, s.tenantID(), worksheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch worksheet '%s': %w", worksheetID, err)
	}

	kept := make([]platform.Row, 0, len(keepRowNames))
	for _, row := range ws.Outline.Rows {
		if slices.Contains(keepRowNames, row.Name) {
			kept = append(kept, row)
		}
	}

	reset := &platform.Worksheet{
		Name:       ws.Name,
		Properties: ws.Properties,
		Outline: platform.WorksheetOutline{
			Rows:             kept,
			LabelDefinitions: ws.Outline.LabelDefinitions,
		},
		Notes: ws.Notes,
	}
	persisted, err := s.platform.PersistWorksheet(ctx, s.tenantID(), worksheetID, reset)
	if err != nil {
		return nil, fmt.Errorf("failed to persist reset worksheet '%s': %w", worksheetID, err)
	}

	s.logger.Info("Worksheet reset",
		zap.String("worksheet_id", worksheetID),
		zap.Int("rows_before", len(ws.Outline.Rows)),
		zap.Int("rows_after", len(kept)))

	evt := events.NewEvent(events.TypeWorksheetReset, s.tenantID(), worksheetID)
	evt.Attributes = map[string]string{"rows": fmt.Sprint(len(kept))}
	s.notify(ctx, evt)

	return persisted, nil
}

// AppendRows appends rows to the worksheet and persists it.
func (s *Service) AppendRows(ctx context.Context, worksheetID string, rows ...platform.Row) (*platform.Worksheet, error) {
	ws, err := s.platform.FetchWorksheet(ctx, s.tenantID(), worksheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch worksheet '%s': %w", worksheetID, err)
	}
	ws.Outline.Rows = append(ws.Outline.Rows, rows...)

	persisted, err := s.platform.PersistWorksheet(ctx, s.tenantID(), worksheetID, ws)
	if err != nil {
		return nil, fmt.Errorf("failed to persist worksheet '%s': %w", worksheetID, err)
	}
	return persisted, nil
}

func (s *Service) loadConfig(ctx context.Context, configID string) (*platform.Config, error) {
	cfg, err := s.platform.LoadConfig(ctx, s.session, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", configID, err)
	}
	return cfg, nil
}

// notify sends an event. Failures are logged and never fail the calling operation.
func (s *Service) notify(ctx context.Context, evt events.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.logger.Warn("Failed to emit event",
			zap.String("event_type", string(evt.Type)),
			zap.String("event_id", evt.ID),
			zap.Error(err))
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func rowAttributes(worksheetID, rowName string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("worksheet.id", worksheetID),
		attribute.String("worksheet.row", rowName),
	)
}
