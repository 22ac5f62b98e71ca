package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"experiment-graphql/internal/dbexec"
	"experiment-graphql/internal/gqlerrors"
	"experiment-graphql/internal/keyset"
	"experiment-graphql/internal/runsort"
	"experiment-graphql/internal/sqlutil"
)

// Page size bounds for run connections.
const (
	DefaultRunPageSize = 50
	MaxPageSize        = 1000
)

var runColumns = []string{
	colID,
	colExperimentID,
	colDatasetExampleID,
	colRepetitionNumber,
	"trace_id",
	"output",
	"start_time",
	"end_time",
	colLatencyMs,
	colPromptTokenCount,
	colCompletionTokenCount,
	colPromptCost,
	colCompletionCost,
	"error",
}

// RunPage is one forward page of an experiment's runs.
type RunPage struct {
	Runs    []ExperimentRun
	HasNext bool
}

// PageBounds overrides the default and maximum connection page sizes.
// Zero fields fall back to the package constants.
type PageBounds struct {
	Default int
	Max     int
}

// Store executes the schema's queries through a scoped executor.
type Store struct {
	exec   dbexec.ScopedExecutor
	bounds PageBounds
}

// New creates a Store over the given executor with the default page bounds.
func New(exec dbexec.ScopedExecutor) *Store {
	return NewWithBounds(exec, PageBounds{})
}

// NewWithBounds creates a Store with configured page bounds.
func NewWithBounds(exec dbexec.ScopedExecutor, bounds PageBounds) *Store {
	if bounds.Default <= 0 {
		bounds.Default = DefaultRunPageSize
	}
	if bounds.Max <= 0 {
		bounds.Max = MaxPageSize
	}
	return &Store{exec: exec, bounds: bounds}
}

// clampPageSize maps absent (negative) or oversized page sizes into the
// configured bounds. Zero is a valid request for an empty page whose
// HasNext still reflects the remaining rows.
func (s *Store) clampPageSize(pageSize int) int {
	if pageSize < 0 {
		return s.bounds.Default
	}
	if pageSize > s.bounds.Max {
		return s.bounds.Max
	}
	return pageSize
}

// RunOrdering resolves a sort specification to concrete ordering columns
// plus any joins the chosen key requires. A nil sort yields the default
// composite key; both parts ascend regardless of direction since no
// direction applies to the default. An unsupported metric fails loudly
// rather than silently returning a wrong-but-successful order.
//
// The latency ordering has no tie-breaking column: runs with equal
// latency that straddle a page boundary may be skipped. Adding a
// tie-breaker would change the observable order, so the gap stands.
func RunOrdering(sort *runsort.Sort) (keyset.Ordering, error) {
	if sort == nil {
		return keyset.Ordering{Columns: []keyset.OrderColumn{
			{Column: colDatasetExampleID, Direction: runsort.DirectionAsc},
			{Column: colRepetitionNumber, Direction: runsort.DirectionAsc},
		}}, nil
	}

	if name, ok := sort.Col.AnnotationName(); ok {
		// Will need a join to experiment_run_annotations once built.
		return keyset.Ordering{}, gqlerrors.NotImplemented("sorting runs by annotation %q", name)
	}

	metric, ok := sort.Col.Metric()
	if !ok {
		return keyset.Ordering{}, gqlerrors.InvariantViolation("sort column selects neither metric nor annotation")
	}

	switch metric {
	case runsort.MetricLatencyMs:
		return keyset.Ordering{Columns: []keyset.OrderColumn{
			{Column: colLatencyMs, Direction: sort.Dir},
		}}, nil
	case runsort.MetricTokenCountTotal, runsort.MetricTokenCostTotal:
		return keyset.Ordering{}, gqlerrors.NotImplemented("sorting runs by %s", metric)
	default:
		return keyset.Ordering{}, gqlerrors.InvariantViolation("unhandled sort metric %q", metric)
	}
}

// VerifySortDispatch confirms every declared metric resolves to either
// an ordering or an explicit not-implemented failure. Run at startup so
// a metric added without ordering logic aborts boot instead of failing
// mid-request.
func VerifySortDispatch() error {
	for _, metric := range runsort.Metrics() {
		col, err := runsort.MetricColumn(metric)
		if err != nil {
			return fmt.Errorf("declared metric %s rejected by column constructor: %w", metric, err)
		}
		_, err = RunOrdering(&runsort.Sort{Col: col, Dir: runsort.DirectionAsc})
		if err != nil && gqlerrors.IsInvariantViolation(err) {
			return fmt.Errorf("sort metric %s has no ordering dispatch: %w", metric, err)
		}
	}
	return nil
}

// FetchRunPage returns one forward page of an experiment's runs.
// It requests pageSize+1 rows so the extra row signals a next page.
// The cursor row's ordering values and the page query run inside one
// read scope and therefore observe a consistent snapshot.
func (s *Store) FetchRunPage(ctx context.Context, experimentID int64, sort *runsort.Sort, afterRunID *int64, pageSize int) (RunPage, error) {
	pageSize = s.clampPageSize(pageSize)

	ordering, err := RunOrdering(sort)
	if err != nil {
		return RunPage{}, err
	}

	var page RunPage
	err = s.exec.ReadScope(ctx, func(exec dbexec.QueryExecutor) error {
		var seek sq.Sqlizer
		if afterRunID != nil {
			values, err := lookupRunOrderValues(ctx, exec, *afterRunID, experimentID, ordering)
			if err != nil {
				return err
			}
			seek, err = keyset.SeekPredicate(ordering.Columns, values)
			if err != nil {
				return err
			}
		}

		// Parent scoping is part of the base query so the seek
		// predicate can only narrow within this experiment's rows.
		builder := sq.Select(quotedColumns(runColumns)...).
			From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
			Where(sq.Eq{sqlutil.QuoteIdentifier(colExperimentID): experimentID})
		builder = keyset.Apply(builder, ordering, seek).
			Limit(uint64(pageSize + 1)).
			PlaceholderFormat(sq.Question)

		query, args, err := builder.ToSql()
		if err != nil {
			return err
		}
		runs, err := queryRuns(ctx, exec, query, args)
		if err != nil {
			return err
		}
		page.Runs = runs
		return nil
	})
	if err != nil {
		return RunPage{}, err
	}

	if len(page.Runs) > pageSize {
		page.Runs = page.Runs[:pageSize]
		page.HasNext = true
	}
	return page, nil
}

// lookupRunOrderValues reads the active ordering columns from the cursor
// row itself, so the after-predicate is evaluated against the exact
// ordering used for the page. A missing row is an invariant violation:
// the identity was already resolved, so the row is expected to exist.
// A row belonging to a different experiment is a caller mistake.
func lookupRunOrderValues(ctx context.Context, exec dbexec.QueryExecutor, runID, experimentID int64, ordering keyset.Ordering) ([]interface{}, error) {
	selected := make([]string, 0, len(ordering.Columns)+1)
	selected = append(selected, sqlutil.QuoteIdentifier(colExperimentID))
	for _, col := range ordering.Columns {
		selected = append(selected, sqlutil.QuoteIdentifier(col.Column))
	}

	builder := sq.Select(selected...).
		From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colID): runID}).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, gqlerrors.InvariantViolation("cursor run %d no longer exists", runID)
	}

	var ownerID int64
	values := make([]interface{}, len(ordering.Columns))
	dests := make([]interface{}, 0, len(values)+1)
	dests = append(dests, &ownerID)
	for i := range values {
		dests = append(dests, &values[i])
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if ownerID != experimentID {
		return nil, gqlerrors.BadRequest("cursor run %d does not belong to experiment %d", runID, experimentID)
	}
	return values, nil
}

func queryRuns(ctx context.Context, exec dbexec.QueryExecutor, query string, args []interface{}) ([]ExperimentRun, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []ExperimentRun
	for rows.Next() {
		var run ExperimentRun
		if err := rows.Scan(
			&run.ID,
			&run.ExperimentID,
			&run.DatasetExampleID,
			&run.RepetitionNumber,
			&run.TraceID,
			&run.Output,
			&run.StartTime,
			&run.EndTime,
			&run.LatencyMs,
			&run.PromptTokenCount,
			&run.CompletionTokenCount,
			&run.PromptCost,
			&run.CompletionCost,
			&run.Error,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func quotedColumns(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col)
	}
	return quoted
}
