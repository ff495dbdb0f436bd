package worksheet

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// RunRowRequest describes a study run derived from an existing row.
type RunRowRequest struct {
	WorksheetID   string
	SourceRowName string

	// NewRowName names the appended row and the study. Defaults to "<source> <RowSuffix>".
	NewRowName string
	RowSuffix  string

	// ConfigIDs are loaded and take precedence over source row configs of the same type.
	ConfigIDs           []string
	ExcludedConfigTypes []string

	SimTypes   []string
	StudyType  string
	Notes      string
	SimVersion string
}

func (r RunRowRequest) rowName(source string) string {
	if r.NewRowName != "" {
		return r.NewRowName
	}
	return fmt.Sprintf("%s %s", source, r.RowSuffix)
}

// RunRowStudy submits a study built from the source row's configs overridden by the
// requested config ids, appends a row referencing the new study and persists the
// worksheet. It returns the study id.
//
// Composition errors are reported before anything is submitted.
func (s *Service) RunRowStudy(ctx context.Context, req RunRowRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "worksheet.run_row_study", rowAttributes(req.WorksheetID, req.SourceRowName))
	defer span.End()

	ws, err := s.platform.FetchWorksheet(ctx, s.tenantID(), req.WorksheetID)
	if err != nil {
		err = fmt.Errorf("failed to fetch worksheet '%s': %w", req.WorksheetID, err)
		recordSpanError(span, err)
		return "", err
	}

	source, err := uniqueRow(ws, req.WorksheetID, req.SourceRowName)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	rowName := req.rowName(source.Name)

	cache := make(map[string]*platform.Config)

	explicit := make([]platform.RowConfig, 0, len(req.ConfigIDs))
	for _, id := range req.ConfigIDs {
		cfg, err := s.loadConfig(ctx, id)
		if err != nil {
			recordSpanError(span, err)
			return "", err
		}
		cache[id] = cfg
		explicit = append(explicit, platform.NewRowConfig(cfg.Document.SubType, s.tenantID(), id))
	}

	carried := make([]platform.RowConfig, 0, len(source.Configs))
	for _, cfg := range source.Configs {
		carried = append(carried, platform.NewRowConfig(cfg.ConfigType, s.tenantID(), cfg.ConfigID()))
	}

	configs, err := ComposeRowConfigs(explicit, carried, req.ExcludedConfigTypes)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}

	loaded, err := s.loadAll(ctx, configs, cache)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}

	submission := BuildStudyRequest(StudyParams{
		Name:       rowName,
		SimTypes:   req.SimTypes,
		StudyType:  req.StudyType,
		Notes:      req.Notes,
		SimVersion: req.SimVersion,
	}, loaded)

	result, err := s.platform.SubmitStudy(ctx, s.tenantID(), submission)
	if err != nil {
		err = fmt.Errorf("failed to submit study '%s': %w", rowName, err)
		recordSpanError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("study.id", result.StudyID))

	newRow := platform.Row{
		Name:    rowName,
		Configs: configs,
		Study:   platform.NewRowStudy(s.tenantID(), result.StudyID),
	}
	ws.Outline.Rows = append(ws.Outline.Rows, newRow)

	if _, err := s.platform.PersistWorksheet(ctx, s.tenantID(), req.WorksheetID, ws); err != nil {
		err = fmt.Errorf("study '%s' was submitted but worksheet '%s' could not be persisted: %w",
			result.StudyID, req.WorksheetID, err)
		recordSpanError(span, err)
		return "", err
	}

	s.logger.Info("Row study submitted",
		zap.String("worksheet_id", req.WorksheetID),
		zap.String("source_row", source.Name),
		zap.String("row", rowName),
		zap.String("study_id", result.StudyID),
		zap.Int("configs", len(configs)))

	evt := events.NewEvent(events.TypeStudySubmitted, s.tenantID(), req.WorksheetID)
	evt.RowName = rowName
	evt.StudyID = result.StudyID
	s.notify(ctx, evt)

	span.SetStatus(codes.Ok, "")
	return result.StudyID, nil
}

// RerunRequest describes a rerun of an existing row as a new row.
type RerunRequest struct {
	Row        platform.Row
	RowSuffix  string
	SimTypes   []string
	StudyType  string
	Notes      string
	SimVersion string
}

func (r RerunRequest) params(name string) StudyParams {
	return StudyParams{
		Name:       name,
		SimTypes:   r.SimTypes,
		StudyType:  r.StudyType,
		Notes:      r.Notes,
		SimVersion: r.SimVersion,
	}
}

// RerunRow submits a study from the row's existing configs and returns a new row
// "<name> <suffix>" referencing it. The worksheet is not modified; use AppendRows.
func (s *Service) RerunRow(ctx context.Context, req RerunRequest) (*platform.Row, error) {
	name := fmt.Sprintf("%s %s", req.Row.Name, req.RowSuffix)
	ctx, span := s.tracer.Start(ctx, "worksheet.rerun_row", rowAttributes("", req.Row.Name))
	defer span.End()

	configs := append([]platform.RowConfig(nil), req.Row.Configs...)
	loaded, err := s.loadAll(ctx, configs, nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return s.submitRow(ctx, name, configs, BuildStudyRequest(req.params(name), loaded))
}

// RerunRowWithExploration is RerunRow with the row's exploration replaced by exploration.
func (s *Service) RerunRowWithExploration(ctx context.Context, req RerunRequest, exploration *platform.Config) (*platform.Row, error) {
	if exploration == nil {
		return nil, sdkerrors.NewInvalidArgumentError("exploration config is nil", "NIL_EXPLORATION")
	}
	name := fmt.Sprintf("%s %s", req.Row.Name, req.RowSuffix)
	ctx, span := s.tracer.Start(ctx, "worksheet.rerun_row_with_exploration", rowAttributes("", req.Row.Name))
	defer span.End()

	configs := make([]platform.RowConfig, 0, len(req.Row.Configs)+1)
	for _, cfg := range req.Row.Configs {
		if cfg.ConfigType != platform.ExplorationConfigType {
			configs = append(configs, cfg)
		}
	}
	loaded, err := s.loadAll(ctx, configs, nil)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	explorationRef := platform.NewRowConfig(platform.ExplorationConfigType, s.tenantID(), exploration.ConfigID)
	configs = append(configs, explorationRef)
	loaded = append(loaded, LoadedConfig{Ref: explorationRef, Config: exploration})

	return s.submitRow(ctx, name, configs, BuildStudyRequest(req.params(name), loaded))
}

func (s *Service) submitRow(ctx context.Context, name string, configs []platform.RowConfig, submission platform.StudySubmission) (*platform.Row, error) {
	result, err := s.platform.SubmitStudy(ctx, s.tenantID(), submission)
	if err != nil {
		return nil, fmt.Errorf("failed to submit study '%s': %w", name, err)
	}
	s.logger.Info("Row rerun submitted",
		zap.String("row", name),
		zap.String("study_id", result.StudyID))
	return &platform.Row{
		Name:    name,
		Configs: configs,
		Study:   platform.NewRowStudy(s.tenantID(), result.StudyID),
	}, nil
}

// loadAll loads every referenced config in order, reusing entries already in cache.
func (s *Service) loadAll(ctx context.Context, configs []platform.RowConfig, cache map[string]*platform.Config) ([]LoadedConfig, error) {
	loaded := make([]LoadedConfig, 0, len(configs))
	for _, ref := range configs {
		cfg, ok := cache[ref.ConfigID()]
		if !ok {
			var err error
			if cfg, err = s.loadConfig(ctx, ref.ConfigID()); err != nil {
				return nil, err
			}
		}
		loaded = append(loaded, LoadedConfig{Ref: ref, Config: cfg})
	}
	return loaded, nil
}

// uniqueRow returns the only row named rowName.
func uniqueRow(ws *platform.Worksheet, worksheetID, rowName string) (*platform.Row, error) {
	count := 0
	for _, row := range ws.Outline.Rows {
		if row.Name == rowName {
			count++
		}
	}
	if count > 1 {
		return nil, sdkerrors.NewValidationError(
			fmt.Sprintf("multiple rows with the name '%s' found in worksheet with ID '%s'", rowName, worksheetID),
			"DUPLICATE_ROW_NAME", nil)
	}
	return findRow(ws, worksheetID, rowName)
}
