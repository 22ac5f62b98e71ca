package resolver

import (
	"database/sql"

	"experiment-graphql/internal/cursor"
	"experiment-graphql/internal/gqlerrors"
	"experiment-graphql/internal/nodeid"
	"experiment-graphql/internal/store"
)

// rowIDKey carries a node's database id on its source map for the
// resolvers that need it (derived aggregates, nested connections,
// cursor assembly). Double underscore keeps it out of the GraphQL
// field namespace, same convention as graphql-go source maps.
const rowIDKey = "__rowID"

// buildConnection assembles the forward-only connection shape. Every
// node's cursor is its own identity; paging backwards is not offered,
// so hasPreviousPage is constantly false.
func buildConnection(typeName string, nodes []map[string]interface{}, hasNext bool) map[string]interface{} {
	if nodes == nil {
		nodes = []map[string]interface{}{}
	}

	edges := make([]map[string]interface{}, len(nodes))
	for i, node := range nodes {
		id, _ := node[rowIDKey].(int64)
		edges[i] = map[string]interface{}{
			"cursor": cursor.Encode(typeName, id),
			"node":   node,
		}
	}

	var startCursor, endCursor interface{}
	if len(edges) > 0 {
		startCursor = edges[0]["cursor"]
		endCursor = edges[len(edges)-1]["cursor"]
	}

	return map[string]interface{}{
		"edges": edges,
		"nodes": nodes,
		"pageInfo": map[string]interface{}{
			"hasNextPage":     hasNext,
			"hasPreviousPage": false,
			"startCursor":     startCursor,
			"endCursor":       endCursor,
		},
	}
}

// sourceRowID reads the database id stashed on a node's source map.
func sourceRowID(source interface{}) (int64, error) {
	node, ok := source.(map[string]interface{})
	if !ok {
		return 0, gqlerrors.InvariantViolation("field resolved against a non-node source %T", source)
	}
	id, ok := node[rowIDKey].(int64)
	if !ok {
		return 0, gqlerrors.InvariantViolation("node source is missing its row id")
	}
	return id, nil
}

// pageSizeArg reads the optional first argument. Absent means the store
// default; an explicit zero stays zero and yields an empty page.
func pageSizeArg(args map[string]interface{}) (int, error) {
	raw, ok := args["first"]
	if !ok || raw == nil {
		return -1, nil
	}
	size, ok := raw.(int)
	if !ok {
		return 0, gqlerrors.BadRequest("first must be a non-negative integer")
	}
	return size, nil
}

func gqlExperiment(experiment store.Experiment) map[string]interface{} {
	return map[string]interface{}{
		rowIDKey:           experiment.ID,
		"id":               nodeid.Encode(TypeExperiment, experiment.ID),
		"name":             experiment.Name,
		"description":      nullString(experiment.Description),
		"projectName":      nullString(experiment.ProjectName),
		"datasetId":        nodeid.Encode(TypeDataset, experiment.DatasetID),
		"datasetVersionId": nodeid.Encode(TypeDatasetVersion, experiment.DatasetVersionID),
		"repetitions":      experiment.Repetitions,
		"metadata":         jsonValue(experiment.Metadata),
		"createdAt":        experiment.CreatedAt,
		"updatedAt":        experiment.UpdatedAt,
	}
}

func gqlRun(run store.ExperimentRun) map[string]interface{} {
	return map[string]interface{}{
		rowIDKey:               run.ID,
		"id":                   nodeid.Encode(TypeExperimentRun, run.ID),
		"experimentId":         nodeid.Encode(TypeExperiment, run.ExperimentID),
		"traceId":              nullString(run.TraceID),
		"output":               jsonValue(run.Output),
		"startTime":            run.StartTime,
		"endTime":              run.EndTime,
		"latencyMs":            run.LatencyMs,
		"repetitionNumber":     run.RepetitionNumber,
		"error":                nullString(run.Error),
		"promptTokenCount":     nullInt(run.PromptTokenCount),
		"completionTokenCount": nullInt(run.CompletionTokenCount),
		"promptCost":           nullFloat(run.PromptCost),
		"completionCost":       nullFloat(run.CompletionCost),
	}
}

func jsonValue(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullString(value sql.NullString) interface{} {
	if !value.Valid {
		return nil
	}
	return value.String
}

func nullInt(value sql.NullInt64) interface{} {
	if !value.Valid {
		return nil
	}
	return int(value.Int64)
}

func nullFloat(value sql.NullFloat64) interface{} {
	if !value.Valid {
		return nil
	}
	return value.Float64
}
