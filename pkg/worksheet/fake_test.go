package worksheet

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

const testTenant = "tenant-1"

// fakePlatform is an in-memory platform holding worksheets and configs.
type fakePlatform struct {
	worksheets  map[string]*platform.Worksheet
	configs     map[string]*platform.Config
	submissions []platform.StudySubmission
	persisted   []*platform.Worksheet
	loads       []string
	submitErr   error
	nextStudy   int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		worksheets: make(map[string]*platform.Worksheet),
		configs:    make(map[string]*platform.Config),
	}
}

func (f *fakePlatform) addConfig(id, subType string, data payload.Payload) {
	f.configs[id] = &platform.Config{
		ConfigID: id,
		Document: platform.ConfigDocument{Data: data, UserID: "user-1", Name: id + " name", SubType: subType},
	}
}

func (f *fakePlatform) FetchWorksheet(_ context.Context, tenantID, worksheetID string) (*platform.Worksheet, error) {
	ws, ok := f.worksheets[worksheetID]
	if !ok {
		return nil, sdkerrors.NewNotFoundError(fmt.Sprintf("worksheet '%s' not found", worksheetID), "PLATFORM_NOT_FOUND")
	}
	// Round-trip through JSON so callers get an independent copy, as over the wire.
	raw, err := json.Marshal(ws)
	if err != nil {
		return nil, err
	}
	var out platform.Worksheet
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *fakePlatform) PersistWorksheet(_ context.Context, _, worksheetID string, ws *platform.Worksheet) (*platform.Worksheet, error) {
	f.worksheets[worksheetID] = ws
	f.persisted = append(f.persisted, ws)
	return ws, nil
}

func (f *fakePlatform) LoadConfig(_ context.Context, _ *platform.Session, configID string) (*platform.Config, error) {
	f.loads = append(f.loads, configID)
	cfg, ok := f.configs[configID]
	if !ok {
		return nil, sdkerrors.NewNotFoundError(fmt.Sprintf("config '%s' not found", configID), "PLATFORM_NOT_FOUND")
	}
	return cfg, nil
}

func (f *fakePlatform) SubmitStudy(_ context.Context, _ string, submission platform.StudySubmission) (*platform.SubmitResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submissions = append(f.submissions, submission)
	f.nextStudy++
	return &platform.SubmitResult{StudyID: fmt.Sprintf("study-%d", f.nextStudy)}, nil
}

type recordingNotifier struct {
	events []events.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, evt events.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func newTestService(t *testing.T, p *fakePlatform) *Service {
	t.Helper()
	svc, err := NewService(p, &platform.Session{TenantID: testTenant, AccessToken: "tok"})
	require.NoError(t, err)
	svc.SetLogger(zap.NewNop())
	return svc
}

func rowConfig(configType, id string) platform.RowConfig {
	return platform.NewRowConfig(configType, testTenant, id)
}
