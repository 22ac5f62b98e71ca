package resolver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experiment-graphql/internal/cursor"
	"experiment-graphql/internal/dbexec"
	"experiment-graphql/internal/loader"
	"experiment-graphql/internal/nodeid"
	"experiment-graphql/internal/store"
)

const selectExperimentColumns = "SELECT `id`, `dataset_id`, `dataset_version_id`, `name`, " +
	"`project_name`, `description`, `repetitions`, `metadata`, `created_at`, `updated_at` " +
	"FROM `experiments`"

const selectRunColumns = "SELECT `id`, `experiment_id`, `dataset_example_id`, `repetition_number`, " +
	"`trace_id`, `output`, `start_time`, `end_time`, `latency_ms`, `prompt_token_count`, " +
	"`completion_token_count`, `prompt_cost`, `completion_cost`, `error` FROM `experiment_runs`"

var experimentRowColumns = []string{
	"id", "dataset_id", "dataset_version_id", "name", "project_name",
	"description", "repetitions", "metadata", "created_at", "updated_at",
}

var runRowColumns = []string{
	"id", "experiment_id", "dataset_example_id", "repetition_number",
	"trace_id", "output", "start_time", "end_time", "latency_ms",
	"prompt_token_count", "completion_token_count", "prompt_cost", "completion_cost", "error",
}

func newTestSchema(t *testing.T) (graphql.Schema, *store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.New(dbexec.NewStandardExecutor(db))
	schema, err := NewResolver(s).BuildGraphQLSchema()
	require.NoError(t, err)
	return schema, s, mock
}

// execute runs a query with a request-scoped loader set installed, as
// the HTTP middleware does for real requests.
func execute(schema graphql.Schema, s *store.Store, query string) *graphql.Result {
	ctx := loader.NewContext(context.Background(), loader.NewLoaders(s))
	return graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       ctx,
	})
}

func experimentRow(id int64, name string) []driver.Value {
	now := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	return []driver.Value{
		id, int64(2), int64(1), name, "demo-project", "a test experiment",
		3, []byte(`{"model":"gpt-x"}`), now, now,
	}
}

func runRow(id, experimentID, exampleID int64, repetition int, latency float64) []driver.Value {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, experimentID, exampleID, repetition,
		"trace-x", []byte(`{}`), now, now.Add(time.Duration(latency) * time.Millisecond), latency,
		int64(100), int64(20), 0.002, 0.004, nil,
	}
}

func dataAt(t *testing.T, result *graphql.Result, path ...string) interface{} {
	t.Helper()
	require.Empty(t, result.Errors, "unexpected GraphQL errors: %v", result.Errors)
	var value interface{} = result.Data
	for _, key := range path {
		node, ok := value.(map[string]interface{})
		require.True(t, ok, "no object at %q", key)
		value = node[key]
	}
	return value
}

func TestExperimentQueryReturnsNode(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(4, "my-experiment")...))

	query := fmt.Sprintf(`{ experiment(id: %q) { id name projectName datasetId datasetVersionId repetitions } }`,
		nodeid.Encode(TypeExperiment, 4))
	result := execute(schema, s, query)

	assert.Equal(t, nodeid.Encode(TypeExperiment, 4), dataAt(t, result, "experiment", "id"))
	assert.Equal(t, "my-experiment", dataAt(t, result, "experiment", "name"))
	assert.Equal(t, "demo-project", dataAt(t, result, "experiment", "projectName"))
	assert.Equal(t, nodeid.Encode(TypeDataset, 2), dataAt(t, result, "experiment", "datasetId"))
	assert.Equal(t, nodeid.Encode(TypeDatasetVersion, 1), dataAt(t, result, "experiment", "datasetVersionId"))
	assert.Equal(t, 3, dataAt(t, result, "experiment", "repetitions"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentQueryMissingReturnsNull(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns))

	query := fmt.Sprintf(`{ experiment(id: %q) { name } }`, nodeid.Encode(TypeExperiment, 404))
	result := execute(schema, s, query)

	assert.Nil(t, dataAt(t, result, "experiment"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentQueryRejectsForeignNodeID(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	query := fmt.Sprintf(`{ experiment(id: %q) { name } }`, nodeid.Encode(TypeExperimentRun, 4))
	result := execute(schema, s, query)

	require.NotEmpty(t, result.Errors)
	// Nothing reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentsConnectionShape(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " ORDER BY `id` ASC LIMIT 3").
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).
			AddRow(experimentRow(1, "a")...).
			AddRow(experimentRow(2, "b")...).
			AddRow(experimentRow(3, "c")...))

	result := execute(schema, s, `{
		experiments(first: 2) {
			edges { cursor node { name } }
			pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
		}
	}`)

	edges, ok := dataAt(t, result, "experiments", "edges").([]interface{})
	require.True(t, ok)
	require.Len(t, edges, 2)

	assert.Equal(t, true, dataAt(t, result, "experiments", "pageInfo", "hasNextPage"))
	assert.Equal(t, false, dataAt(t, result, "experiments", "pageInfo", "hasPreviousPage"))
	assert.Equal(t, cursor.Encode(TypeExperiment, 1), dataAt(t, result, "experiments", "pageInfo", "startCursor"))
	assert.Equal(t, cursor.Encode(TypeExperiment, 2), dataAt(t, result, "experiments", "pageInfo", "endCursor"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentsConnectionAfterCursor(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE (`id`) > (?) ORDER BY `id` ASC LIMIT 3").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(3, "c")...))

	query := fmt.Sprintf(`{
		experiments(first: 2, after: %q) {
			nodes { name }
			pageInfo { hasNextPage }
		}
	}`, cursor.Encode(TypeExperiment, 2))
	result := execute(schema, s, query)

	nodes, ok := dataAt(t, result, "experiments", "nodes").([]interface{})
	require.True(t, ok)
	require.Len(t, nodes, 1)
	assert.Equal(t, false, dataAt(t, result, "experiments", "pageInfo", "hasNextPage"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperimentAggregatesBatchAcrossPage(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " ORDER BY `id` ASC LIMIT 3").
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).
			AddRow(experimentRow(1, "a")...).
			AddRow(experimentRow(2, "b")...))

	// Both experiments' counts arrive in one grouped query.
	mock.ExpectQuery("SELECT `experiment_id`, COUNT(*) FROM `experiment_runs` " +
		"WHERE `experiment_id` IN (?,?) GROUP BY `experiment_id`").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"experiment_id", "count"}).
			AddRow(int64(1), int64(10)).
			AddRow(int64(2), int64(4)))

	result := execute(schema, s, `{ experiments(first: 2) { nodes { name runCount } } }`)

	nodes, ok := dataAt(t, result, "experiments", "nodes").([]interface{})
	require.True(t, ok)
	require.Len(t, nodes, 2)
	first, ok := nodes[0].(map[string]interface{})
	require.True(t, ok)
	second, ok := nodes[1].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 10, first["runCount"])
	assert.Equal(t, 4, second["runCount"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsConnectionLatencyDescSort(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(9, "paged")...))
	mock.ExpectBegin()
	mock.ExpectQuery(selectRunColumns +
		" WHERE `experiment_id` = ? ORDER BY `latency_ms` DESC LIMIT 3").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow(runRow(2, 9, 100, 2, 30)...).
			AddRow(runRow(3, 9, 101, 1, 20)...).
			AddRow(runRow(1, 9, 100, 1, 10)...))
	mock.ExpectCommit()

	query := fmt.Sprintf(`{
		experiment(id: %q) {
			runs(first: 2, sort: {col: {metric: latencyMs}, dir: desc}) {
				nodes { latencyMs }
				pageInfo { hasNextPage hasPreviousPage endCursor }
			}
		}
	}`, nodeid.Encode(TypeExperiment, 9))
	result := execute(schema, s, query)

	nodes, ok := dataAt(t, result, "experiment", "runs", "nodes").([]interface{})
	require.True(t, ok)
	require.Len(t, nodes, 2)
	firstNode, ok := nodes[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 30.0, firstNode["latencyMs"])
	assert.Equal(t, true, dataAt(t, result, "experiment", "runs", "pageInfo", "hasNextPage"))
	assert.Equal(t, false, dataAt(t, result, "experiment", "runs", "pageInfo", "hasPreviousPage"))
	assert.Equal(t, cursor.Encode(TypeExperimentRun, 3), dataAt(t, result, "experiment", "runs", "pageInfo", "endCursor"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsConnectionMalformedCursorFailsBeforeQuerying(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(9, "paged")...))

	query := fmt.Sprintf(`{
		experiment(id: %q) {
			runs(after: "not-a-cursor") { nodes { latencyMs } }
		}
	}`, nodeid.Encode(TypeExperiment, 9))
	result := execute(schema, s, query)

	require.NotEmpty(t, result.Errors)
	// Only the experiment lookup ran; no run query was issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsConnectionUnsupportedMetricSort(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(9, "paged")...))

	query := fmt.Sprintf(`{
		experiment(id: %q) {
			runs(sort: {col: {metric: tokenCountTotal}, dir: asc}) { nodes { latencyMs } }
		}
	}`, nodeid.Encode(TypeExperiment, 9))
	result := execute(schema, s, query)

	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "not implemented")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsConnectionRejectsBothSortSelectors(t *testing.T) {
	schema, s, mock := newTestSchema(t)

	mock.ExpectQuery(selectExperimentColumns + " WHERE `id` = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(experimentRowColumns).AddRow(experimentRow(9, "paged")...))

	query := fmt.Sprintf(`{
		experiment(id: %q) {
			runs(sort: {col: {metric: latencyMs, annotationName: "accuracy"}, dir: asc}) {
				nodes { latencyMs }
			}
		}
	}`, nodeid.Encode(TypeExperiment, 9))
	result := execute(schema, s, query)

	require.NotEmpty(t, result.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
