// Package store runs the SQL queries behind the experiment GraphQL
// schema: entity lookups, keyset-paginated run pages, and the grouped
// aggregate queries the batched loaders consume.
package store

import (
	"database/sql"
	"time"
)

// Table and column names for the fixed schema.
const (
	TableExperiments    = "experiments"
	TableExperimentRuns = "experiment_runs"
	TableRunAnnotations = "experiment_run_annotations"

	colID                   = "id"
	colExperimentID         = "experiment_id"
	colDatasetExampleID     = "dataset_example_id"
	colRepetitionNumber     = "repetition_number"
	colLatencyMs            = "latency_ms"
	colPromptTokenCount     = "prompt_token_count"
	colCompletionTokenCount = "completion_token_count"
	colPromptCost           = "prompt_cost"
	colCompletionCost       = "completion_cost"
)

// Experiment mirrors one row of the experiments table.
type Experiment struct {
	ID               int64
	DatasetID        int64
	DatasetVersionID int64
	Name             string
	ProjectName      sql.NullString
	Description      sql.NullString
	Repetitions      int
	Metadata         []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExperimentRun mirrors one row of the experiment_runs table.
// (experiment_id, dataset_example_id, repetition_number) is unique, so
// the default (dataset_example_id, repetition_number) ordering is a
// total order within one experiment.
type ExperimentRun struct {
	ID                   int64
	ExperimentID         int64
	DatasetExampleID     int64
	RepetitionNumber     int
	TraceID              sql.NullString
	Output               []byte
	StartTime            time.Time
	EndTime              time.Time
	LatencyMs            float64
	PromptTokenCount     sql.NullInt64
	CompletionTokenCount sql.NullInt64
	PromptCost           sql.NullFloat64
	CompletionCost       sql.NullFloat64
	Error                sql.NullString
}

// AnnotationSummary aggregates one annotation name over an experiment's runs.
type AnnotationSummary struct {
	AnnotationName string
	MinScore       sql.NullFloat64
	MaxScore       sql.NullFloat64
	MeanScore      sql.NullFloat64
	Count          int64
	ErrorCount     int64
}

// CostBreakdown is a token/cost pair for one side of a run's usage.
type CostBreakdown struct {
	Tokens int64
	Cost   sql.NullFloat64
}

// CostSummary sums token usage and cost over an experiment's runs.
type CostSummary struct {
	Prompt     CostBreakdown
	Completion CostBreakdown
	Total      CostBreakdown
}
