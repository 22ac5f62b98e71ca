package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"experiment-graphql/internal/dbexec"
	"experiment-graphql/internal/runsort"
)

// newSqliteStore runs pages against a real in-memory engine instead of
// canned rows, so the generated ORDER BY and seek predicates are
// actually executed.
func newSqliteStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE experiment_runs (
		id INTEGER PRIMARY KEY,
		experiment_id INTEGER NOT NULL,
		dataset_example_id INTEGER NOT NULL,
		repetition_number INTEGER NOT NULL,
		trace_id TEXT,
		output BLOB,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		latency_ms REAL NOT NULL,
		prompt_token_count INTEGER,
		completion_token_count INTEGER,
		prompt_cost REAL,
		completion_cost REAL,
		error TEXT
	)`)
	require.NoError(t, err)
	return New(dbexec.NewStandardExecutor(db)), db
}

func insertRun(t *testing.T, db *sql.DB, id, experimentID, exampleID int64, repetition int, latency float64) {
	t.Helper()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	_, err := db.Exec(
		`INSERT INTO experiment_runs (id, experiment_id, dataset_example_id, repetition_number,
			trace_id, output, start_time, end_time, latency_ms,
			prompt_token_count, completion_token_count, prompt_cost, completion_cost, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, experimentID, exampleID, repetition,
		nil, []byte(`{}`), now, now.Add(time.Duration(latency)*time.Millisecond), latency,
		nil, nil, nil, nil, nil,
	)
	require.NoError(t, err)
}

// chainRunPages follows after-cursors to exhaustion and returns the
// concatenated run ids in the order the pages delivered them.
func chainRunPages(t *testing.T, s *Store, experimentID int64, sort *runsort.Sort, pageSize int) []int64 {
	t.Helper()
	var ids []int64
	var after *int64
	for {
		page, err := s.FetchRunPage(context.Background(), experimentID, sort, after, pageSize)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Runs), pageSize)
		for _, run := range page.Runs {
			ids = append(ids, run.ID)
		}
		if !page.HasNext {
			return ids
		}
		require.NotEmpty(t, page.Runs, "hasNext with an empty page would loop forever")
		last := page.Runs[len(page.Runs)-1].ID
		after = &last
	}
}

func TestDefaultOrderingChainingYieldsEachRunOnce(t *testing.T) {
	s, db := newSqliteStore(t)

	// Row ids scrambled against the (dataset_example_id,
	// repetition_number) key so insertion order cannot mask a broken
	// ORDER BY or seek predicate.
	insertRun(t, db, 3, 1, 100, 1, 11)
	insertRun(t, db, 2, 1, 100, 2, 12)
	insertRun(t, db, 4, 1, 101, 1, 13)
	insertRun(t, db, 1, 1, 101, 2, 14)
	insertRun(t, db, 5, 1, 102, 1, 15)

	// Another experiment sharing example ids must never leak in.
	insertRun(t, db, 10, 2, 100, 1, 16)
	insertRun(t, db, 11, 2, 101, 1, 17)

	ids := chainRunPages(t, s, 1, nil, 2)
	assert.Equal(t, []int64{3, 2, 4, 1, 5}, ids)
}

func TestLatencyDescChainingResumesAfterCursor(t *testing.T) {
	s, db := newSqliteStore(t)

	insertRun(t, db, 21, 7, 100, 1, 10)
	insertRun(t, db, 22, 7, 101, 1, 30)
	insertRun(t, db, 23, 7, 102, 1, 20)

	col, err := runsort.MetricColumn(runsort.MetricLatencyMs)
	require.NoError(t, err)
	sort := &runsort.Sort{Col: col, Dir: runsort.DirectionDesc}

	first, err := s.FetchRunPage(context.Background(), 7, sort, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Runs, 2)
	assert.Equal(t, int64(22), first.Runs[0].ID)
	assert.Equal(t, int64(23), first.Runs[1].ID)
	assert.True(t, first.HasNext)

	after := first.Runs[1].ID
	second, err := s.FetchRunPage(context.Background(), 7, sort, &after, 2)
	require.NoError(t, err)
	require.Len(t, second.Runs, 1)
	assert.Equal(t, int64(21), second.Runs[0].ID)
	assert.False(t, second.HasNext)
}
