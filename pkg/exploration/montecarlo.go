// Package exploration builds exploration configs that sweep config parameters across ranges.
package exploration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// DefaultPoints is the number of Monte Carlo samples when none is given.
const DefaultPoints = 1000

const sweptParameterSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["path", "min", "max"],
	"properties": {
		"path": {"type": "string", "minLength": 1},
		"min": {"type": "number"},
		"max": {"type": "number"}
	}
}`

var sweptParameterValidator = jsonschema.MustCompileString("swept-parameter.json", sweptParameterSchema)

// SweptParameter is a config path sampled uniformly between Min and Max.
type SweptParameter struct {
	Path string  `json:"path"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// ParseSweptParameters decodes a JSON array of swept parameters. Every entry must carry
// path, min and max; the first entry that does not is reported.
func ParseSweptParameters(raw []byte) ([]SweptParameter, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, sdkerrors.NewValidationError("swept parameter data is not a JSON array", "INVALID_SWEPT_PARAMETERS", err)
	}

	params := make([]SweptParameter, 0, len(entries))
	for i, entry := range entries {
		var doc any
		if err := json.Unmarshal(entry, &doc); err != nil {
			return nil, sdkerrors.NewValidationError(
				fmt.Sprintf("swept parameter %d is not valid JSON", i), "INVALID_SWEPT_PARAMETER", err)
		}
		if err := sweptParameterValidator.Validate(doc); err != nil {
			return nil, sdkerrors.NewValidationError(
				fmt.Sprintf("missing or invalid keys in swept parameter data: %s", strings.TrimSpace(string(entry))),
				"INVALID_SWEPT_PARAMETER", err)
		}

		var p SweptParameter
		if err := json.Unmarshal(entry, &p); err != nil {
			return nil, sdkerrors.NewValidationError(
				fmt.Sprintf("swept parameter %d could not be decoded", i), "INVALID_SWEPT_PARAMETER", err)
		}
		params = append(params, p)
	}
	return params, nil
}

type parallelSubRange struct {
	ParameterPath     string  `json:"parameterPath"`
	ValueType         string  `json:"valueType"`
	ValueStart        float64 `json:"valueStart"`
	ValueEnd          float64 `json:"valueEnd"`
	InterpolationType string  `json:"interpolationType"`
}

type designRange struct {
	DimensionType     string             `json:"dimensionType"`
	Distribution      string             `json:"distribution"`
	ParallelSubRanges []parallelSubRange `json:"parallelSubRanges"`
}

// BuildMonteCarlo returns the exploration payload sampling every parameter uniformly.
// points <= 0 uses DefaultPoints.
func BuildMonteCarlo(params []SweptParameter, points int) (payload.Payload, error) {
	if points <= 0 {
		points = DefaultPoints
	}

	doc := []byte(`{"design":{"ranges":[]}}`)
	var err error
	if doc, err = sjson.SetBytes(doc, "design.name", "Monte Carlo"); err != nil {
		return nil, fmt.Errorf("failed to set design name: %w", err)
	}
	if doc, err = sjson.SetBytes(doc, "design.numberOfPoints", points); err != nil {
		return nil, fmt.Errorf("failed to set number of points: %w", err)
	}

	for _, p := range params {
		r := designRange{
			DimensionType: "interpolation",
			Distribution:  "uniform",
			ParallelSubRanges: []parallelSubRange{{
				ParameterPath:     p.Path,
				ValueType:         "absolute",
				ValueStart:        p.Min,
				ValueEnd:          p.Max,
				InterpolationType: "linear",
			}},
		}
		if doc, err = sjson.SetBytes(doc, "design.ranges.-1", r); err != nil {
			return nil, fmt.Errorf("failed to add range for '%s': %w", p.Path, err)
		}
	}

	var out payload.Payload
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("failed to decode exploration design: %w", err)
	}
	return out, nil
}

// Service creates exploration configs for one session.
type Service struct {
	creator platform.ConfigCreator
	session *platform.Session
	logger  *zap.Logger
}

// NewService creates an exploration service.
func NewService(creator platform.ConfigCreator, session *platform.Session) (*Service, error) {
	if creator == nil {
		return nil, sdkerrors.NewInvalidArgumentError("config creator is nil", "NIL_CONFIG_CREATOR")
	}
	logger, _ := zap.NewProduction()
	return &Service{creator: creator, session: session, logger: logger}, nil
}

// SetLogger sets a custom zap logger for the service
func (s *Service) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// CreateMonteCarloConfig stores a Monte Carlo exploration over params and returns its config id.
func (s *Service) CreateMonteCarloConfig(ctx context.Context, name, simVersion string, params []SweptParameter, points int) (string, error) {
	data, err := BuildMonteCarlo(params, points)
	if err != nil {
		return "", err
	}
	configID, err := s.creator.CreateConfig(ctx, s.session, platform.ExplorationConfigType, name, data, simVersion)
	if err != nil {
		return "", fmt.Errorf("failed to create exploration config '%s': %w", name, err)
	}
	s.logger.Info("Exploration config created",
		zap.String("config_id", configID),
		zap.String("name", name),
		zap.Int("parameters", len(params)))
	return configID, nil
}

// CreateMonteCarloConfigFromJSON parses raw swept parameter data and stores the exploration.
func (s *Service) CreateMonteCarloConfigFromJSON(ctx context.Context, name, simVersion string, raw []byte, points int) (string, error) {
	params, err := ParseSweptParameters(raw)
	if err != nil {
		return "", err
	}
	return s.CreateMonteCarloConfig(ctx, name, simVersion, params, points)
}
