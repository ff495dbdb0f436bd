// Package results turns a study's raw per-job scalar results into analysis structures:
// input/output correlation per job, limit checks, violations and extrema.
//
// Functions here are pure over the job list; loading the study is the caller's concern.
package results

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/platform"
)

// changesPath locates the perturbed-input list inside a job's data.
const changesPath = "changes"

// Aggregator runs the analyses that emit diagnostics.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates an aggregator. A nil logger falls back to a production logger.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Aggregator{logger: logger}
}

// CollectNamedScalars gathers the requested scalars of every job not excluded.
// An entry is created on a job's first matching scalar, with its inputs taken once from
// the job's changes. A job id listed again adds its outputs to the existing entry. Jobs
// without any requested scalar do not appear. Order follows the job list, then scalarIDs.
func (a *Aggregator) CollectNamedScalars(jobs []platform.Job, scalarIDs []string, excludedJobIDs []string) ([]AggregatedJobResult, error) {
	excluded := toSet(excludedJobIDs)
	collected := make([]AggregatedJobResult, 0)
	positions := make(map[string]int)

	for _, job := range jobs {
		if _, skip := excluded[job.DocumentID]; skip {
			continue
		}
		for _, scalarID := range scalarIDs {
			value, ok := job.Scalar(scalarID)
			if !ok {
				continue
			}
			pos, seen := positions[job.DocumentID]
			if !seen {
				inputs, err := jobInputs(job)
				if err != nil {
					return nil, err
				}
				pos = len(collected)
				positions[job.DocumentID] = pos
				collected = append(collected, AggregatedJobResult{
					JobID:   job.DocumentID,
					Inputs:  inputs,
					Outputs: make([]ScalarValue, 0, len(scalarIDs)),
				})
			}
			collected[pos].Outputs = append(collected[pos].Outputs, ScalarValue{ID: scalarID, Value: value})
		}
	}

	a.logger.Debug("Collected named scalars",
		zap.Int("jobs", len(jobs)),
		zap.Strings("scalar_ids", scalarIDs),
		zap.Int("matched_jobs", len(collected)))

	return collected, nil
}

// CollectBoundedScalars pairs each job's scalar values with their limits. Every job is
// keyed, even when none of the limited scalars are present. Exclusions do not apply here.
// A scalar missing from a job is logged and skipped.
func (a *Aggregator) CollectBoundedScalars(jobs []platform.Job, limits []ScalarLimit) BoundedScalars {
	bounded := make(BoundedScalars, len(jobs))

	for _, job := range jobs {
		records := make([]BoundedScalar, 0, len(limits))
		for _, limit := range limits {
			value, ok := job.Scalar(limit.ID)
			if !ok {
				a.logger.Warn("Scalar not found in job",
					zap.String("scalar", limit.ID),
					zap.String("job_id", job.DocumentID))
				continue
			}
			lower, upper := limit.Bounds()
			records = append(records, BoundedScalar{
				Scalar:   limit.ID,
				Value:    value,
				MinLimit: lower,
				MaxLimit: upper,
			})
		}
		bounded[job.DocumentID] = records
	}

	return bounded
}

// FindViolations keeps only the records lying strictly outside their limits.
func FindViolations(bounded BoundedScalars) Violations {
	violations := make(Violations)
	for jobID, records := range bounded {
		for _, record := range records {
			if record.Violates() {
				violations[jobID] = append(violations[jobID], record)
			}
		}
	}
	return violations
}

// FindMinimum returns the job holding the smallest value of scalar among jobs not excluded.
// Ties resolve to the first job in order and NaN values are ignored. When no job carries
// the scalar, the result is a not found error rather than a sentinel pair.
func (a *Aggregator) FindMinimum(jobs []platform.Job, scalar string, excludedJobIDs []string) (JobScalar, error) {
	excluded := toSet(excludedJobIDs)
	minimum := JobScalar{Scalar: scalar, Value: math.Inf(1)}
	found := false

	for _, job := range jobs {
		if _, skip := excluded[job.DocumentID]; skip {
			continue
		}
		value, ok := job.Scalar(scalar)
		if !ok || math.IsNaN(value) {
			continue
		}
		a.logger.Debug("Checked job for minimum",
			zap.String("job_id", job.DocumentID),
			zap.String("scalar", scalar),
			zap.Float64("value", value))
		if !found || value < minimum.Value {
			minimum.JobID = job.DocumentID
			minimum.Value = value
			found = true
		}
	}

	if !found {
		return JobScalar{}, sdkerrors.NewNotFoundError(
			fmt.Sprintf("scalar '%s' not found in any job not excluded", scalar),
			"SCALAR_NOT_FOUND")
	}
	return minimum, nil
}

// JobsAboveThreshold returns the jobs whose scalar is strictly greater than threshold.
// Every job must carry the scalar.
func (a *Aggregator) JobsAboveThreshold(jobs []platform.Job, scalar string, threshold float64) ([]JobScalar, error) {
	above := make([]JobScalar, 0)
	for _, job := range jobs {
		value, ok := job.Scalar(scalar)
		if !ok {
			return nil, sdkerrors.NewNotFoundError(
				fmt.Sprintf("scalar '%s' not found in job %s", scalar, job.DocumentID),
				"SCALAR_NOT_FOUND")
		}
		if value > threshold {
			a.logger.Info("Job above threshold",
				zap.String("job_id", job.DocumentID),
				zap.String("scalar", scalar),
				zap.Float64("value", value),
				zap.Float64("threshold", threshold))
			above = append(above, JobScalar{JobID: job.DocumentID, Scalar: scalar, Value: value})
		}
	}
	return above, nil
}

// SummarizeStudy reads the headline fields of a study.
func SummarizeStudy(study *platform.Study) Stats {
	doc := study.Document
	return Stats{
		StudyID:                  doc.DocumentID,
		StudyName:                doc.Name,
		StudyType:                gjson.GetBytes(doc.Data, "studyType").String(),
		StudyState:               gjson.GetBytes(doc.Data, "studyState").String(),
		SimulationCount:          study.SimulationCount,
		SucceededSimulationCount: study.SucceededSimulationCount,
	}
}

// jobInputs reads the job's changes as numeric inputs. Values may be numbers or numeric strings.
func jobInputs(job platform.Job) ([]ParameterValue, error) {
	inputs := make([]ParameterValue, 0)
	if len(job.Data) == 0 {
		return inputs, nil
	}
	changes := gjson.GetBytes(job.Data, changesPath)
	if !changes.IsArray() {
		return inputs, nil
	}

	for i, change := range changes.Array() {
		path := change.Get("path").String()
		raw := change.Get("value")
		var value float64
		switch raw.Type {
		case gjson.Number:
			value = raw.Float()
		case gjson.String:
			parsed, err := strconv.ParseFloat(raw.Str, 64)
			if err != nil {
				return nil, sdkerrors.NewValidationError(
					fmt.Sprintf("change %d ('%s') of job %s has non-numeric value '%s'", i, path, job.DocumentID, raw.Str),
					"INVALID_CHANGE_VALUE", err)
			}
			value = parsed
		default:
			return nil, sdkerrors.NewValidationError(
				fmt.Sprintf("change %d ('%s') of job %s has no numeric value", i, path, job.DocumentID),
				"INVALID_CHANGE_VALUE", nil)
		}
		inputs = append(inputs, ParameterValue{Path: path, Value: value})
	}
	return inputs, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
