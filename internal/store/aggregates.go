package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"experiment-graphql/internal/sqlutil"
)

// RunCounts returns the number of runs per experiment id. Experiments
// with no runs are absent from the map; callers treat absence as zero.
func (s *Store) RunCounts(ctx context.Context, experimentIDs []int64) (map[int64]int64, error) {
	if len(experimentIDs) == 0 {
		return map[int64]int64{}, nil
	}
	builder := sq.Select(sqlutil.QuoteIdentifier(colExperimentID), "COUNT(*)").
		From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colExperimentID): experimentIDs}).
		GroupBy(sqlutil.QuoteIdentifier(colExperimentID)).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int64, len(experimentIDs))
	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// AverageRunLatencies returns AVG(latency_ms) per experiment id.
// Experiments without runs have no average and are absent.
func (s *Store) AverageRunLatencies(ctx context.Context, experimentIDs []int64) (map[int64]float64, error) {
	if len(experimentIDs) == 0 {
		return map[int64]float64{}, nil
	}
	builder := sq.Select(
		sqlutil.QuoteIdentifier(colExperimentID),
		fmt.Sprintf("AVG(%s)", sqlutil.QuoteIdentifier(colLatencyMs)),
	).
		From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colExperimentID): experimentIDs}).
		GroupBy(sqlutil.QuoteIdentifier(colExperimentID)).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	averages := make(map[int64]float64, len(experimentIDs))
	for rows.Next() {
		var id int64
		var avg sql.NullFloat64
		if err := rows.Scan(&id, &avg); err != nil {
			return nil, err
		}
		if avg.Valid {
			averages[id] = avg.Float64
		}
	}
	return averages, rows.Err()
}

// ErrorRates returns the fraction of runs with a non-null error per
// experiment id. Experiments without runs are absent.
func (s *Store) ErrorRates(ctx context.Context, experimentIDs []int64) (map[int64]float64, error) {
	if len(experimentIDs) == 0 {
		return map[int64]float64{}, nil
	}
	builder := sq.Select(
		sqlutil.QuoteIdentifier(colExperimentID),
		"AVG(CASE WHEN `error` IS NULL THEN 0.0 ELSE 1.0 END)",
	).
		From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colExperimentID): experimentIDs}).
		GroupBy(sqlutil.QuoteIdentifier(colExperimentID)).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	rates := make(map[int64]float64, len(experimentIDs))
	for rows.Next() {
		var id int64
		var rate sql.NullFloat64
		if err := rows.Scan(&id, &rate); err != nil {
			return nil, err
		}
		if rate.Valid {
			rates[id] = rate.Float64
		}
	}
	return rates, rows.Err()
}

// SequenceNumbers returns the 1-based rank of each experiment among
// experiments of the same dataset, ordered by id. Computed with a
// self-join count so one query serves the whole batch.
func (s *Store) SequenceNumbers(ctx context.Context, experimentIDs []int64) (map[int64]int, error) {
	if len(experimentIDs) == 0 {
		return map[int64]int{}, nil
	}
	exp := sqlutil.QuoteIdentifier(TableExperiments)
	builder := sq.Select("e.`id`", "COUNT(*)").
		From(exp+" AS e").
		Join(exp+" AS s ON s.`dataset_id` = e.`dataset_id` AND s.`id` <= e.`id`").
		Where(sq.Eq{"e.`id`": experimentIDs}).
		GroupBy("e.`id`").
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sequenceNumbers := make(map[int64]int, len(experimentIDs))
	for rows.Next() {
		var id int64
		var seq int
		if err := rows.Scan(&id, &seq); err != nil {
			return nil, err
		}
		sequenceNumbers[id] = seq
	}
	return sequenceNumbers, rows.Err()
}

// AnnotationSummaries returns per-annotation-name score statistics over
// each experiment's runs, grouped by experiment id, names in ascending
// order within each experiment.
func (s *Store) AnnotationSummaries(ctx context.Context, experimentIDs []int64) (map[int64][]AnnotationSummary, error) {
	if len(experimentIDs) == 0 {
		return map[int64][]AnnotationSummary{}, nil
	}
	runs := sqlutil.QuoteIdentifier(TableExperimentRuns)
	annotations := sqlutil.QuoteIdentifier(TableRunAnnotations)
	builder := sq.Select(
		"r.`experiment_id`",
		"a.`name`",
		"MIN(a.`score`)",
		"MAX(a.`score`)",
		"AVG(a.`score`)",
		"COUNT(*)",
		"SUM(CASE WHEN a.`error` IS NULL THEN 0 ELSE 1 END)",
	).
		From(annotations+" AS a").
		Join(runs+" AS r ON r.`id` = a.`experiment_run_id`").
		Where(sq.Eq{"r.`experiment_id`": experimentIDs}).
		GroupBy("r.`experiment_id`", "a.`name`").
		OrderBy("r.`experiment_id` ASC", "a.`name` ASC").
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := make(map[int64][]AnnotationSummary, len(experimentIDs))
	for rows.Next() {
		var experimentID int64
		var summary AnnotationSummary
		if err := rows.Scan(
			&experimentID,
			&summary.AnnotationName,
			&summary.MinScore,
			&summary.MaxScore,
			&summary.MeanScore,
			&summary.Count,
			&summary.ErrorCount,
		); err != nil {
			return nil, err
		}
		summaries[experimentID] = append(summaries[experimentID], summary)
	}
	return summaries, rows.Err()
}

// CostSummaries sums token usage and cost per experiment id. Experiments
// without runs are absent; callers fall back to a zero summary.
func (s *Store) CostSummaries(ctx context.Context, experimentIDs []int64) (map[int64]CostSummary, error) {
	if len(experimentIDs) == 0 {
		return map[int64]CostSummary{}, nil
	}
	builder := sq.Select(
		sqlutil.QuoteIdentifier(colExperimentID),
		fmt.Sprintf("COALESCE(SUM(%s), 0)", sqlutil.QuoteIdentifier(colPromptTokenCount)),
		fmt.Sprintf("COALESCE(SUM(%s), 0)", sqlutil.QuoteIdentifier(colCompletionTokenCount)),
		fmt.Sprintf("SUM(%s)", sqlutil.QuoteIdentifier(colPromptCost)),
		fmt.Sprintf("SUM(%s)", sqlutil.QuoteIdentifier(colCompletionCost)),
	).
		From(sqlutil.QuoteIdentifier(TableExperimentRuns)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colExperimentID): experimentIDs}).
		GroupBy(sqlutil.QuoteIdentifier(colExperimentID)).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := make(map[int64]CostSummary, len(experimentIDs))
	for rows.Next() {
		var id int64
		var summary CostSummary
		if err := rows.Scan(
			&id,
			&summary.Prompt.Tokens,
			&summary.Completion.Tokens,
			&summary.Prompt.Cost,
			&summary.Completion.Cost,
		); err != nil {
			return nil, err
		}
		summary.Total = totalBreakdown(summary.Prompt, summary.Completion)
		summaries[id] = summary
	}
	return summaries, rows.Err()
}

func totalBreakdown(prompt, completion CostBreakdown) CostBreakdown {
	total := CostBreakdown{Tokens: prompt.Tokens + completion.Tokens}
	if prompt.Cost.Valid || completion.Cost.Valid {
		total.Cost = sql.NullFloat64{
			Float64: prompt.Cost.Float64 + completion.Cost.Float64,
			Valid:   true,
		}
	}
	return total
}
