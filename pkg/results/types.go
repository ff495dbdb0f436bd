package results

import (
	"encoding/json"
	"math"
)

// ParameterValue is one perturbed input of a job.
type ParameterValue struct {
	Path  string  `json:"path"`
	Value float64 `json:"value"`
}

// ScalarValue is one scalar output of a job.
type ScalarValue struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// AggregatedJobResult correlates a job's perturbed inputs with the requested scalar outputs.
type AggregatedJobResult struct {
	JobID   string           `json:"job_id"`
	Inputs  []ParameterValue `json:"inputs"`
	Outputs []ScalarValue    `json:"outputs"`
}

// JobScalar is a single scalar value attributed to a job.
type JobScalar struct {
	JobID  string  `json:"job_id"`
	Scalar string  `json:"scalar"`
	Value  float64 `json:"value"`
}

// ScalarLimit is the admissible range of a scalar. A nil bound is unbounded on that side.
type ScalarLimit struct {
	ID  string   `json:"id"`
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Bounds resolves the limit to a closed range using -Inf/+Inf for absent bounds.
func (l ScalarLimit) Bounds() (float64, float64) {
	lower, upper := math.Inf(-1), math.Inf(1)
	if l.Min != nil {
		lower = *l.Min
	}
	if l.Max != nil {
		upper = *l.Max
	}
	return lower, upper
}

// Limit is a convenience constructor for a two-sided limit.
func Limit(id string, lower, upper float64) ScalarLimit {
	return ScalarLimit{ID: id, Min: &lower, Max: &upper}
}

// BoundedScalar is a job's scalar value alongside its resolved limits.
type BoundedScalar struct {
	Scalar   string
	Value    float64
	MinLimit float64
	MaxLimit float64
}

// Violates reports whether the value lies strictly outside its limits.
// Values equal to a bound are compliant.
func (b BoundedScalar) Violates() bool {
	return b.Value < b.MinLimit || b.Value > b.MaxLimit
}

type boundedScalarJSON struct {
	Scalar   string   `json:"scalar"`
	Value    float64  `json:"scalar_value"`
	MinLimit *float64 `json:"min_limit"`
	MaxLimit *float64 `json:"max_limit"`
}

// MarshalJSON encodes infinite bounds as null since JSON has no infinity.
func (b BoundedScalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundedScalarJSON{
		Scalar:   b.Scalar,
		Value:    b.Value,
		MinLimit: finiteOrNil(b.MinLimit),
		MaxLimit: finiteOrNil(b.MaxLimit),
	})
}

// UnmarshalJSON restores null bounds as infinities.
func (b *BoundedScalar) UnmarshalJSON(data []byte) error {
	var raw boundedScalarJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Scalar = raw.Scalar
	b.Value = raw.Value
	b.MinLimit, b.MaxLimit = math.Inf(-1), math.Inf(1)
	if raw.MinLimit != nil {
		b.MinLimit = *raw.MinLimit
	}
	if raw.MaxLimit != nil {
		b.MaxLimit = *raw.MaxLimit
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BoundedScalars maps every job id to its bounded scalar records.
type BoundedScalars map[string][]BoundedScalar

// Violations maps job ids to the records that fall outside their limits.
// Only jobs with at least one violation are present.
type Violations map[string][]BoundedScalar

// Stats summarises a study.
type Stats struct {
	StudyID                  string `json:"study_id"`
	StudyName                string `json:"study_name"`
	StudyType                string `json:"study_type"`
	StudyState               string `json:"study_state"`
	SimulationCount          int    `json:"simulation_count"`
	SucceededSimulationCount int    `json:"succeeded_simulation_count"`
}
