package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"experiment-graphql/internal/dbexec"
	"experiment-graphql/internal/keyset"
	"experiment-graphql/internal/runsort"
	"experiment-graphql/internal/sqlutil"
)

var experimentColumns = []string{
	colID,
	"dataset_id",
	"dataset_version_id",
	"name",
	"project_name",
	"description",
	"repetitions",
	"metadata",
	"created_at",
	"updated_at",
}

// ExperimentPage is one forward page of experiments ordered by id.
type ExperimentPage struct {
	Experiments []Experiment
	HasNext     bool
}

// GetExperiment fetches a single experiment by id. Returns (nil, nil)
// when no such row exists.
func (s *Store) GetExperiment(ctx context.Context, id int64) (*Experiment, error) {
	builder := sq.Select(quotedColumns(experimentColumns)...).
		From(sqlutil.QuoteIdentifier(TableExperiments)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(colID): id}).
		PlaceholderFormat(sq.Question)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	experiments, err := queryExperiments(ctx, s.exec, query, args)
	if err != nil {
		return nil, err
	}
	if len(experiments) == 0 {
		return nil, nil
	}
	return &experiments[0], nil
}

// FetchExperimentPage returns one forward page of all experiments in
// ascending id order. The id is the cursor position itself, so no
// row lookup is needed before building the seek predicate.
func (s *Store) FetchExperimentPage(ctx context.Context, afterID *int64, pageSize int) (ExperimentPage, error) {
	pageSize = s.clampPageSize(pageSize)

	ordering := keyset.Ordering{Columns: []keyset.OrderColumn{
		{Column: colID, Direction: runsort.DirectionAsc},
	}}
	var seek sq.Sqlizer
	if afterID != nil {
		var err error
		seek, err = keyset.SeekPredicate(ordering.Columns, []interface{}{*afterID})
		if err != nil {
			return ExperimentPage{}, err
		}
	}

	builder := sq.Select(quotedColumns(experimentColumns)...).
		From(sqlutil.QuoteIdentifier(TableExperiments))
	builder = keyset.Apply(builder, ordering, seek).
		Limit(uint64(pageSize + 1)).
		PlaceholderFormat(sq.Question)

	query, args, err := builder.ToSql()
	if err != nil {
		return ExperimentPage{}, err
	}

	experiments, err := queryExperiments(ctx, s.exec, query, args)
	if err != nil {
		return ExperimentPage{}, err
	}

	page := ExperimentPage{Experiments: experiments}
	if len(page.Experiments) > pageSize {
		page.Experiments = page.Experiments[:pageSize]
		page.HasNext = true
	}
	return page, nil
}

func queryExperiments(ctx context.Context, exec dbexec.QueryExecutor, query string, args []interface{}) ([]Experiment, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var experiments []Experiment
	for rows.Next() {
		var exp Experiment
		if err := rows.Scan(
			&exp.ID,
			&exp.DatasetID,
			&exp.DatasetVersionID,
			&exp.Name,
			&exp.ProjectName,
			&exp.Description,
			&exp.Repetitions,
			&exp.Metadata,
			&exp.CreatedAt,
			&exp.UpdatedAt,
		); err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	return experiments, rows.Err()
}
