package worksheet

import (
	"fmt"
	"slices"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

const (
	// DefaultSimType is run when a request names no sim types
	DefaultSimType = "DynamicLap"

	// DefaultStudyType is the study type used when a request leaves it empty
	DefaultStudyType = "dynamicLap"
)

// StudyParams describe the study submitted for a row.
type StudyParams struct {
	Name       string
	SimTypes   []string
	StudyType  string
	Notes      string
	SimVersion string
}

func (p StudyParams) withDefaults() StudyParams {
	if len(p.SimTypes) == 0 {
		p.SimTypes = []string{DefaultSimType}
	}
	if p.StudyType == "" {
		p.StudyType = DefaultStudyType
	}
	return p
}

// LoadedConfig is a row config reference together with the config it points at.
type LoadedConfig struct {
	Ref    platform.RowConfig
	Config *platform.Config
}

// ComposeRowConfigs builds the config list of a new row. Explicit configs come first,
// followed by the source row's configs whose type is not present yet. The result must
// hold each type at most once. Excluded types are then filtered out.
//
// Neither input slice is modified.
func ComposeRowConfigs(explicit, source []platform.RowConfig, excludedTypes []string) ([]platform.RowConfig, error) {
	composed := make([]platform.RowConfig, 0, len(explicit)+len(source))
	composed = append(composed, explicit...)

	for _, cfg := range source {
		if containsType(composed, cfg.ConfigType) {
			continue
		}
		composed = append(composed, cfg)
	}

	types := make([]string, len(composed))
	seen := make(map[string]struct{}, len(composed))
	duplicate := false
	for i, cfg := range composed {
		types[i] = cfg.ConfigType
		if _, ok := seen[cfg.ConfigType]; ok {
			duplicate = true
		}
		seen[cfg.ConfigType] = struct{}{}
	}
	if duplicate {
		return nil, sdkerrors.NewValidationError(
			fmt.Sprintf("duplicate configuration types found in the new configs: %v", types),
			"DUPLICATE_CONFIG_TYPE", nil)
	}

	kept := make([]platform.RowConfig, 0, len(composed))
	for _, cfg := range composed {
		if slices.Contains(excludedTypes, cfg.ConfigType) {
			continue
		}
		kept = append(kept, cfg)
	}
	return kept, nil
}

func containsType(configs []platform.RowConfig, configType string) bool {
	return slices.ContainsFunc(configs, func(c platform.RowConfig) bool {
		return c.ConfigType == configType
	})
}

// BuildStudyRequest assembles a study submission from loaded configs. Exploration configs
// become the top-level exploration payload; every other config is placed in simConfig
// under its type. Sources follow the order of loaded.
func BuildStudyRequest(params StudyParams, loaded []LoadedConfig) platform.StudySubmission {
	params = params.withDefaults()

	body := platform.StudyBody{
		SimTypes:  params.SimTypes,
		SimConfig: make(map[string]payload.Payload, len(loaded)),
	}
	sources := make([]platform.DataSource, 0, len(loaded))

	for _, lc := range loaded {
		doc := lc.Config.Document
		if lc.Ref.ConfigType == platform.ExplorationConfigType {
			body.Exploration = doc.Data
		} else {
			body.SimConfig[lc.Ref.ConfigType] = doc.Data
		}
		sources = append(sources, platform.DataSource{
			ConfigType: lc.Ref.ConfigType,
			UserID:     doc.UserID,
			ConfigID:   lc.Ref.ConfigID(),
			Name:       doc.Name,
		})
	}

	return platform.StudySubmission{
		Name:        params.Name,
		Study:       body,
		IsTransient: false,
		StudyType:   params.StudyType,
		Sources:     sources,
		Notes:       params.Notes,
		SimVersion:  params.SimVersion,
	}
}
