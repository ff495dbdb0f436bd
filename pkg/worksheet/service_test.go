package worksheet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

func seedPlatform() *fakePlatform {
	p := newFakePlatform()
	p.addConfig("car-1", "car", payload.Payload{"mass": 798.0})
	p.addConfig("tyres-1", "tyres", payload.Payload{"pressure": 1.8})
	p.addConfig("tyres-2", "tyres", payload.Payload{"pressure": 2.0})
	p.addConfig("sweep-1", "exploration", payload.Payload{"design": map[string]any{}})
	p.worksheets["ws-1"] = &platform.Worksheet{
		Name:       "Monza",
		Properties: json.RawMessage(`{"colour":"red"}`),
		Notes:      "quali prep",
		Outline: platform.WorksheetOutline{
			LabelDefinitions: json.RawMessage(`[{"name":"baseline"}]`),
			Rows: []platform.Row{
				{
					Name:    "baseline",
					Configs: []platform.RowConfig{rowConfig("car", "car-1"), rowConfig("tyres", "tyres-1")},
					Study:   platform.NewRowStudy(testTenant, "study-0"),
				},
				{
					Name:    "sweep",
					Configs: []platform.RowConfig{rowConfig("car", "car-1"), rowConfig("exploration", "sweep-1")},
				},
			},
		},
	}
	return p
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, &platform.Session{AccessToken: "x"})
	assert.True(t, sdkerrors.IsInvalidArgument(err))

	_, err = NewService(newFakePlatform(), &platform.Session{})
	assert.True(t, sdkerrors.IsInvalidArgument(err))
}

func TestFindRow(t *testing.T) {
	svc := newTestService(t, seedPlatform())

	row, err := svc.FindRow(context.Background(), "ws-1", "sweep")
	require.NoError(t, err)
	assert.Equal(t, "sweep", row.Name)
	assert.False(t, RowHasStudy(*row))

	_, err = svc.FindRow(context.Background(), "ws-1", "missing")
	assert.True(t, sdkerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "'missing'")
}

func TestStudyIDOfRow(t *testing.T) {
	svc := newTestService(t, seedPlatform())

	id, err := svc.StudyIDOfRow(context.Background(), "ws-1", "baseline")
	require.NoError(t, err)
	assert.Equal(t, "study-0", id)

	_, err = svc.StudyIDOfRow(context.Background(), "ws-1", "sweep")
	assert.True(t, sdkerrors.IsNotFound(err))
}

func TestConfigOfType(t *testing.T) {
	svc := newTestService(t, seedPlatform())

	cfg, err := svc.ConfigOfType(context.Background(), "ws-1", "baseline", "tyres")
	require.NoError(t, err)
	assert.Equal(t, "tyres-1", cfg.ConfigID)

	_, err = svc.ConfigOfType(context.Background(), "ws-1", "baseline", "weather")
	assert.True(t, sdkerrors.IsNotFound(err))
}

func TestResetWorksheet_KeepsNamedRowsAndMetadata(t *testing.T) {
	p := seedPlatform()
	notifier := &recordingNotifier{}
	svc := newTestService(t, p)
	svc.SetNotifier(notifier)

	ws, err := svc.ResetWorksheet(context.Background(), "ws-1", []string{"sweep", "not-there"})
	require.NoError(t, err)

	require.Len(t, ws.Outline.Rows, 1)
	assert.Equal(t, "sweep", ws.Outline.Rows[0].Name)
	assert.Equal(t, "Monza", ws.Name)
	assert.Equal(t, "quali prep", ws.Notes)
	assert.JSONEq(t, `{"colour":"red"}`, string(ws.Properties))
	assert.JSONEq(t, `[{"name":"baseline"}]`, string(ws.Outline.LabelDefinitions))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, events.TypeWorksheetReset, notifier.events[0].Type)
}

func TestRunRowStudy(t *testing.T) {
	p := seedPlatform()
	notifier := &recordingNotifier{}
	svc := newTestService(t, p)
	svc.SetNotifier(notifier)

	studyID, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:   "ws-1",
		SourceRowName: "baseline",
		RowSuffix:     "soft",
		ConfigIDs:     []string{"tyres-2"},
		SimVersion:    "1.4",
		Notes:         "softer tyres",
	})
	require.NoError(t, err)
	assert.Equal(t, "study-1", studyID)

	require.Len(t, p.submissions, 1)
	sub := p.submissions[0]
	assert.Equal(t, "baseline soft", sub.Name)
	assert.Equal(t, "softer tyres", sub.Notes)
	assert.Equal(t, 2.0, sub.Study.SimConfig["tyres"]["pressure"])
	assert.Equal(t, 798.0, sub.Study.SimConfig["car"]["mass"])
	assert.Equal(t, []string{"tyres", "car"}, []string{sub.Sources[0].ConfigType, sub.Sources[1].ConfigType})

	ws := p.worksheets["ws-1"]
	require.Len(t, ws.Outline.Rows, 3)
	added := ws.Outline.Rows[2]
	assert.Equal(t, "baseline soft", added.Name)
	assert.Equal(t, "study-1", added.StudyID())
	assert.Equal(t, "tyres-2", added.Configs[0].ConfigID())

	require.Len(t, notifier.events, 1)
	assert.Equal(t, events.TypeStudySubmitted, notifier.events[0].Type)
	assert.Equal(t, "study-1", notifier.events[0].StudyID)
}

func TestRunRowStudy_ExplorationGoesTopLevel(t *testing.T) {
	p := seedPlatform()
	svc := newTestService(t, p)

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:   "ws-1",
		SourceRowName: "sweep",
		NewRowName:    "sweep again",
	})
	require.NoError(t, err)

	sub := p.submissions[0]
	assert.Equal(t, "sweep again", sub.Name)
	assert.NotNil(t, sub.Study.Exploration)
	assert.NotContains(t, sub.Study.SimConfig, "exploration")
}

func TestRunRowStudy_ExcludedTypesAreDropped(t *testing.T) {
	p := seedPlatform()
	svc := newTestService(t, p)

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:         "ws-1",
		SourceRowName:       "sweep",
		RowSuffix:           "single",
		ExcludedConfigTypes: []string{"exploration"},
	})
	require.NoError(t, err)

	sub := p.submissions[0]
	assert.Nil(t, sub.Study.Exploration)
	assert.Len(t, sub.Sources, 1)
}

func TestRunRowStudy_DuplicateTypesRejectedBeforeSubmission(t *testing.T) {
	p := seedPlatform()
	svc := newTestService(t, p)

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:   "ws-1",
		SourceRowName: "baseline",
		RowSuffix:     "x",
		ConfigIDs:     []string{"tyres-1", "tyres-2"},
	})

	require.Error(t, err)
	assert.True(t, sdkerrors.IsValidation(err))
	assert.Empty(t, p.submissions)
	assert.Empty(t, p.persisted)
}

func TestRunRowStudy_SourceRowErrors(t *testing.T) {
	p := seedPlatform()
	ws := p.worksheets["ws-1"]
	ws.Outline.Rows = append(ws.Outline.Rows, platform.Row{Name: "baseline"})
	svc := newTestService(t, p)

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{WorksheetID: "ws-1", SourceRowName: "baseline"})
	assert.True(t, sdkerrors.IsValidation(err))

	_, err = svc.RunRowStudy(context.Background(), RunRowRequest{WorksheetID: "ws-1", SourceRowName: "ghost"})
	assert.True(t, sdkerrors.IsNotFound(err))
	assert.Empty(t, p.submissions)
}

func TestRunRowStudy_NotifierFailureIsLoggedOnly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := seedPlatform()
	svc := newTestService(t, p)
	svc.SetLogger(zap.New(core))
	svc.SetNotifier(&recordingNotifier{err: errors.New("nats down")})

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:   "ws-1",
		SourceRowName: "baseline",
		RowSuffix:     "again",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Failed to emit event").Len())
}

func TestRunRowStudy_SubmitFailureLeavesWorksheet(t *testing.T) {
	p := seedPlatform()
	p.submitErr = errors.New("quota exceeded")
	svc := newTestService(t, p)

	_, err := svc.RunRowStudy(context.Background(), RunRowRequest{
		WorksheetID:   "ws-1",
		SourceRowName: "baseline",
		RowSuffix:     "again",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline again")
	assert.Empty(t, p.persisted)
}

func TestRerunRow(t *testing.T) {
	p := seedPlatform()
	svc := newTestService(t, p)
	source := p.worksheets["ws-1"].Outline.Rows[0]

	row, err := svc.RerunRow(context.Background(), RerunRequest{Row: source, RowSuffix: "v2", SimVersion: "1.4"})
	require.NoError(t, err)

	assert.Equal(t, "baseline v2", row.Name)
	assert.Equal(t, "study-1", row.StudyID())
	assert.Equal(t, configTypes(source.Configs), configTypes(row.Configs))
	assert.Empty(t, p.persisted)

	ws, err := svc.AppendRows(context.Background(), "ws-1", *row)
	require.NoError(t, err)
	assert.Len(t, ws.Outline.Rows, 3)
}

func TestRerunRowWithExploration(t *testing.T) {
	p := seedPlatform()
	p.addConfig("sweep-2", "exploration", payload.Payload{"design": map[string]any{"numberOfPoints": 50.0}})
	svc := newTestService(t, p)
	source := p.worksheets["ws-1"].Outline.Rows[1]

	row, err := svc.RerunRowWithExploration(context.Background(),
		RerunRequest{Row: source, RowSuffix: "wide"}, p.configs["sweep-2"])
	require.NoError(t, err)

	assert.Equal(t, []string{"car", "exploration"}, configTypes(row.Configs))
	assert.Equal(t, "sweep-2", row.Configs[1].ConfigID())

	sub := p.submissions[0]
	assert.Equal(t, p.configs["sweep-2"].Document.Data, sub.Study.Exploration)
	assert.NotContains(t, p.loads, "sweep-1")

	_, err = svc.RerunRowWithExploration(context.Background(), RerunRequest{Row: source}, nil)
	assert.True(t, sdkerrors.IsInvalidArgument(err))
}
