package resolver

import (
	"github.com/graphql-go/graphql"

	"experiment-graphql/internal/cursor"
	"experiment-graphql/internal/gqlerrors"
	"experiment-graphql/internal/runsort"
	"experiment-graphql/internal/store"
)

// buildTypes constructs every GraphQL object, enum, and input type the
// schema uses. graphql-go requires one instance per type name, so the
// results are stored on the resolver and reused.
func (r *Resolver) buildTypes() {
	r.sortDirEnum = graphql.NewEnum(graphql.EnumConfig{
		Name:        "SortDir",
		Description: "Ascending or descending sort order.",
		Values: graphql.EnumValueConfigMap{
			string(runsort.DirectionAsc):  &graphql.EnumValueConfig{Value: string(runsort.DirectionAsc)},
			string(runsort.DirectionDesc): &graphql.EnumValueConfig{Value: string(runsort.DirectionDesc)},
		},
	})

	metricValues := graphql.EnumValueConfigMap{}
	for _, metric := range runsort.Metrics() {
		metricValues[string(metric)] = &graphql.EnumValueConfig{Value: string(metric)}
	}
	r.runMetricEnum = graphql.NewEnum(graphql.EnumConfig{
		Name:        "ExperimentRunMetric",
		Description: "Orderable quantities on an experiment run.",
		Values:      metricValues,
	})

	r.runColumnInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        "ExperimentRunColumn",
		Description: "Sort key selector: exactly one of metric or annotationName.",
		Fields: graphql.InputObjectConfigFieldMap{
			"metric":         &graphql.InputObjectFieldConfig{Type: r.runMetricEnum},
			"annotationName": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	r.runSortInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ExperimentRunSort",
		Fields: graphql.InputObjectConfigFieldMap{
			"col": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(r.runColumnInput)},
			"dir": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(r.sortDirEnum)},
		},
	})

	r.pageInfoType = graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"startCursor":     &graphql.Field{Type: graphql.String},
			"endCursor":       &graphql.Field{Type: graphql.String},
		},
	})

	r.annotationSummaryType = graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentAnnotationSummary",
		Fields: graphql.Fields{
			"annotationName": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"minScore":       &graphql.Field{Type: graphql.Float},
			"maxScore":       &graphql.Field{Type: graphql.Float},
			"meanScore":      &graphql.Field{Type: graphql.Float},
			"count":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"errorCount":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	r.costBreakdownType = graphql.NewObject(graphql.ObjectConfig{
		Name: "CostBreakdown",
		Fields: graphql.Fields{
			"tokens": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"cost":   &graphql.Field{Type: graphql.Float},
		},
	})

	r.costSummaryType = graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentCostSummary",
		Fields: graphql.Fields{
			"prompt":     &graphql.Field{Type: graphql.NewNonNull(r.costBreakdownType)},
			"completion": &graphql.Field{Type: graphql.NewNonNull(r.costBreakdownType)},
			"total":      &graphql.Field{Type: graphql.NewNonNull(r.costBreakdownType)},
		},
	})

	r.experimentRunType = graphql.NewObject(graphql.ObjectConfig{
		Name: TypeExperimentRun,
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"experimentId":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"traceId":              &graphql.Field{Type: graphql.String},
			"output":               &graphql.Field{Type: r.jsonScalar},
			"startTime":            &graphql.Field{Type: graphql.NewNonNull(r.dateTimeScalar)},
			"endTime":              &graphql.Field{Type: graphql.NewNonNull(r.dateTimeScalar)},
			"latencyMs":            &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"repetitionNumber":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"error":                &graphql.Field{Type: graphql.String},
			"promptTokenCount":     &graphql.Field{Type: graphql.Int},
			"completionTokenCount": &graphql.Field{Type: graphql.Int},
			"promptCost":           &graphql.Field{Type: graphql.Float},
			"completionCost":       &graphql.Field{Type: graphql.Float},
		},
	})

	runEdgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentRunEdge",
		Fields: graphql.Fields{
			"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"node":   &graphql.Field{Type: graphql.NewNonNull(r.experimentRunType)},
		},
	})

	r.runConnection = graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentRunConnection",
		Fields: graphql.Fields{
			"edges":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(runEdgeType)))},
			"nodes":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.experimentRunType)))},
			"pageInfo": &graphql.Field{Type: graphql.NewNonNull(r.pageInfoType)},
		},
	})

	r.experimentType = graphql.NewObject(graphql.ObjectConfig{
		Name: TypeExperiment,
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description":      &graphql.Field{Type: graphql.String},
			"projectName":      &graphql.Field{Type: graphql.String},
			"datasetId":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"datasetVersionId": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"repetitions":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"metadata":         &graphql.Field{Type: r.jsonScalar},
			"createdAt":        &graphql.Field{Type: graphql.NewNonNull(r.dateTimeScalar)},
			"updatedAt":        &graphql.Field{Type: graphql.NewNonNull(r.dateTimeScalar)},
			"sequenceNumber": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "1-based position of this experiment within its dataset.",
				Resolve:     r.resolveSequenceNumber,
			},
			"runCount": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Int),
				Resolve: r.resolveRunCount,
			},
			"averageRunLatencyMs": &graphql.Field{
				Type:    graphql.Float,
				Resolve: r.resolveAverageRunLatency,
			},
			"errorRate": &graphql.Field{
				Type:    graphql.Float,
				Resolve: r.resolveErrorRate,
			},
			"annotationSummaries": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.annotationSummaryType))),
				Resolve: r.resolveAnnotationSummaries,
			},
			"costSummary": &graphql.Field{
				Type:    r.costSummaryType,
				Resolve: r.resolveCostSummary,
			},
			"runs": &graphql.Field{
				Type:        graphql.NewNonNull(r.runConnection),
				Description: "This experiment's runs, forward-paginated.",
				Args: graphql.FieldConfigArgument{
					"first": &graphql.ArgumentConfig{Type: r.nonNegativeInt},
					"after": &graphql.ArgumentConfig{Type: graphql.String},
					"sort":  &graphql.ArgumentConfig{Type: r.runSortInput},
				},
				Resolve: r.resolveExperimentRuns,
			},
		},
	})

	experimentEdgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentEdge",
		Fields: graphql.Fields{
			"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"node":   &graphql.Field{Type: graphql.NewNonNull(r.experimentType)},
		},
	})

	r.experimentConnection = graphql.NewObject(graphql.ObjectConfig{
		Name: "ExperimentConnection",
		Fields: graphql.Fields{
			"edges":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(experimentEdgeType)))},
			"nodes":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.experimentType)))},
			"pageInfo": &graphql.Field{Type: graphql.NewNonNull(r.pageInfoType)},
		},
	})
}

func (r *Resolver) resolveExperimentRuns(p graphql.ResolveParams) (interface{}, error) {
	experimentID, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}

	pageSize, err := pageSizeArg(p.Args)
	if err != nil {
		return nil, err
	}
	sort, err := runsort.Parse(p.Args)
	if err != nil {
		return nil, err
	}

	var afterRunID *int64
	if raw, ok := p.Args["after"].(string); ok && raw != "" {
		id, err := cursor.Decode(raw, TypeExperimentRun)
		if err != nil {
			return nil, err
		}
		afterRunID = &id
	}

	page, err := r.store.FetchRunPage(p.Context, experimentID, sort, afterRunID, pageSize)
	if err != nil {
		return nil, err
	}

	nodes := make([]map[string]interface{}, len(page.Runs))
	for i, run := range page.Runs {
		nodes[i] = gqlRun(run)
	}
	return buildConnection(TypeExperimentRun, nodes, page.HasNext), nil
}

func (r *Resolver) resolveExperiments(p graphql.ResolveParams) (interface{}, error) {
	pageSize, err := pageSizeArg(p.Args)
	if err != nil {
		return nil, err
	}

	var afterID *int64
	if raw, ok := p.Args["after"].(string); ok && raw != "" {
		id, err := cursor.Decode(raw, TypeExperiment)
		if err != nil {
			return nil, err
		}
		afterID = &id
	}

	page, err := r.store.FetchExperimentPage(p.Context, afterID, pageSize)
	if err != nil {
		return nil, err
	}

	nodes := make([]map[string]interface{}, len(page.Experiments))
	ids := make([]int64, len(page.Experiments))
	for i, experiment := range page.Experiments {
		nodes[i] = gqlExperiment(experiment)
		ids[i] = experiment.ID
	}
	// Registering the whole page lets any aggregate the selection reads
	// fetch all of the page's experiments in one grouped query.
	r.loaders(p.Context).RegisterExperiments(ids...)

	return buildConnection(TypeExperiment, nodes, page.HasNext), nil
}

func (r *Resolver) resolveSequenceNumber(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	sequence, found, err := r.loaders(p.Context).SequenceNumbers.Load(p.Context, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gqlerrors.InvariantViolation("experiment %d has no sequence number", id)
	}
	return sequence, nil
}

func (r *Resolver) resolveRunCount(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	count, found, err := r.loaders(p.Context).RunCounts.Load(p.Context, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return 0, nil
	}
	return int(count), nil
}

func (r *Resolver) resolveAverageRunLatency(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	latency, found, err := r.loaders(p.Context).AverageRunLatencies.Load(p.Context, id)
	if err != nil || !found {
		return nil, err
	}
	return latency, nil
}

func (r *Resolver) resolveErrorRate(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	rate, found, err := r.loaders(p.Context).ErrorRates.Load(p.Context, id)
	if err != nil || !found {
		return nil, err
	}
	return rate, nil
}

func (r *Resolver) resolveAnnotationSummaries(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	summaries, found, err := r.loaders(p.Context).AnnotationSummaries.Load(p.Context, id)
	if err != nil {
		return nil, err
	}
	result := make([]map[string]interface{}, 0, len(summaries))
	if !found {
		return result, nil
	}
	for _, summary := range summaries {
		result = append(result, map[string]interface{}{
			"annotationName": summary.AnnotationName,
			"minScore":       nullFloat(summary.MinScore),
			"maxScore":       nullFloat(summary.MaxScore),
			"meanScore":      nullFloat(summary.MeanScore),
			"count":          int(summary.Count),
			"errorCount":     int(summary.ErrorCount),
		})
	}
	return result, nil
}

func (r *Resolver) resolveCostSummary(p graphql.ResolveParams) (interface{}, error) {
	id, err := sourceRowID(p.Source)
	if err != nil {
		return nil, err
	}
	summary, found, err := r.loaders(p.Context).CostSummaries.Load(p.Context, id)
	if err != nil || !found {
		return nil, err
	}
	return map[string]interface{}{
		"prompt":     gqlCostBreakdown(summary.Prompt),
		"completion": gqlCostBreakdown(summary.Completion),
		"total":      gqlCostBreakdown(summary.Total),
	}, nil
}

func gqlCostBreakdown(breakdown store.CostBreakdown) map[string]interface{} {
	return map[string]interface{}{
		"tokens": int(breakdown.Tokens),
		"cost":   nullFloat(breakdown.Cost),
	}
}
