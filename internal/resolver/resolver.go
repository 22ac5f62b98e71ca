// Package resolver builds the GraphQL schema for experiments and their
// runs: node lookups, forward-only keyset-paginated connections, and
// batched aggregate fields.
package resolver

import (
	"context"
	"sync"

	"github.com/graphql-go/graphql"

	"experiment-graphql/internal/gqlerrors"
	"experiment-graphql/internal/loader"
	"experiment-graphql/internal/nodeid"
	"experiment-graphql/internal/scalars"
	"experiment-graphql/internal/store"
)

// GraphQL type names, shared with cursors and node ids. Dataset and
// DatasetVersion are referenced by id only; no object type is served
// for them here.
const (
	TypeExperiment     = "Experiment"
	TypeExperimentRun  = "ExperimentRun"
	TypeDataset        = "Dataset"
	TypeDatasetVersion = "DatasetVersion"
)

// Resolver wires the store into GraphQL field resolvers. GraphQL object
// types are built once and cached; graphql-go requires a single instance
// per type name within a schema.
type Resolver struct {
	store *store.Store

	buildOnce sync.Once
	buildErr  error

	jsonScalar     *graphql.Scalar
	dateTimeScalar *graphql.Scalar
	nonNegativeInt *graphql.Scalar

	pageInfoType          *graphql.Object
	experimentType        *graphql.Object
	experimentRunType     *graphql.Object
	experimentConnection  *graphql.Object
	runConnection         *graphql.Object
	annotationSummaryType *graphql.Object
	costBreakdownType     *graphql.Object
	costSummaryType       *graphql.Object
	sortDirEnum           *graphql.Enum
	runMetricEnum         *graphql.Enum
	runColumnInput        *graphql.InputObject
	runSortInput          *graphql.InputObject
	schema                graphql.Schema
}

// NewResolver creates a resolver over the given store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{
		store:          s,
		jsonScalar:     scalars.JSON(),
		dateTimeScalar: scalars.DateTime(),
		nonNegativeInt: scalars.NonNegativeInt(),
	}
}

// BuildGraphQLSchema constructs the executable schema. Safe to call more
// than once; the schema is built a single time.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	r.buildOnce.Do(func() {
		r.buildTypes()

		rootQuery := graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"experiment": &graphql.Field{
					Type:        r.experimentType,
					Description: "Fetch a single experiment by its global id.",
					Args: graphql.FieldConfigArgument{
						"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					},
					Resolve: r.resolveExperiment,
				},
				"experiments": &graphql.Field{
					Type:        graphql.NewNonNull(r.experimentConnection),
					Description: "All experiments in ascending id order.",
					Args: graphql.FieldConfigArgument{
						"first": &graphql.ArgumentConfig{Type: r.nonNegativeInt},
						"after": &graphql.ArgumentConfig{Type: graphql.String},
					},
					Resolve: r.resolveExperiments,
				},
			},
		})

		r.schema, r.buildErr = graphql.NewSchema(graphql.SchemaConfig{Query: rootQuery})
	})
	return r.schema, r.buildErr
}

func (r *Resolver) resolveExperiment(p graphql.ResolveParams) (interface{}, error) {
	raw, ok := p.Args["id"].(string)
	if !ok {
		return nil, gqlerrors.BadRequest("experiment id must be a string")
	}
	id, err := nodeid.DecodeExpected(raw, TypeExperiment)
	if err != nil {
		return nil, err
	}

	experiment, err := r.store.GetExperiment(p.Context, id)
	if err != nil {
		return nil, err
	}
	if experiment == nil {
		return nil, nil
	}
	return gqlExperiment(*experiment), nil
}

// loaders returns the request-scoped loader set, or a one-shot set when
// the request pipeline did not install one (e.g. direct schema use in
// tests). A one-shot set still batches within itself but caches nothing
// across fields that resolve on different sets.
func (r *Resolver) loaders(ctx context.Context) *loader.Loaders {
	if loaders, ok := loader.FromContext(ctx); ok {
		return loaders
	}
	return loader.NewLoaders(r.store)
}
