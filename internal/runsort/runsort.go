// Package runsort defines the sort specification for experiment run
// connections: a closed set of sortable metrics or a named annotation,
// combined with a direction.
package runsort

import (
	"fmt"

	"experiment-graphql/internal/gqlerrors"
)

// Direction is the sort direction for a run connection.
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// Metric enumerates the orderable quantities on an experiment run.
type Metric string

const (
	MetricTokenCountTotal Metric = "tokenCountTotal"
	MetricLatencyMs       Metric = "latencyMs"
	MetricTokenCostTotal  Metric = "tokenCostTotal"
)

// Metrics lists every declared metric. Ordering dispatch is checked
// against this list at startup so an added metric without ordering logic
// fails fast instead of surprising at request time.
func Metrics() []Metric {
	return []Metric{MetricTokenCountTotal, MetricLatencyMs, MetricTokenCostTotal}
}

func validMetric(m Metric) bool {
	for _, known := range Metrics() {
		if m == known {
			return true
		}
	}
	return false
}

// Column is a one-of column selector: exactly one of a metric or an
// annotation name. The zero value is invalid; construct via MetricColumn
// or AnnotationColumn so the one-of contract holds by construction.
type Column struct {
	metric       Metric
	annotation   string
	isAnnotation bool
	valid        bool
}

// MetricColumn selects a declared run metric as the sort key.
func MetricColumn(m Metric) (Column, error) {
	if !validMetric(m) {
		return Column{}, gqlerrors.BadRequest("unknown sort metric %q", string(m))
	}
	return Column{metric: m, valid: true}, nil
}

// AnnotationColumn selects a named annotation score as the sort key.
func AnnotationColumn(name string) (Column, error) {
	if name == "" {
		return Column{}, gqlerrors.BadRequest("annotation sort name must not be empty")
	}
	return Column{annotation: name, isAnnotation: true, valid: true}, nil
}

// Metric returns the selected metric, if this column selects one.
func (c Column) Metric() (Metric, bool) {
	if !c.valid || c.isAnnotation {
		return "", false
	}
	return c.metric, true
}

// AnnotationName returns the selected annotation name, if any.
func (c Column) AnnotationName() (string, bool) {
	if !c.valid || !c.isAnnotation {
		return "", false
	}
	return c.annotation, true
}

func (c Column) String() string {
	switch {
	case !c.valid:
		return "<invalid column>"
	case c.isAnnotation:
		return fmt.Sprintf("annotation(%s)", c.annotation)
	default:
		return string(c.metric)
	}
}

// Sort pairs a column selector with a direction. A nil *Sort means the
// caller gets the default composite ordering.
type Sort struct {
	Col Column
	Dir Direction
}

// Parse reads the "sort" connection argument as delivered by graphql-go.
// Absent or null sort yields (nil, nil). A selector naming both or
// neither of metric/annotationName violates the one-of contract and
// fails as caller input.
func Parse(args map[string]interface{}) (*Sort, error) {
	if args == nil {
		return nil, nil
	}
	raw, ok := args["sort"]
	if !ok || raw == nil {
		return nil, nil
	}
	sortArgs, ok := raw.(map[string]interface{})
	if !ok {
		return nil, gqlerrors.BadRequest("sort must be an input object")
	}

	dir, err := parseDirection(sortArgs["dir"])
	if err != nil {
		return nil, err
	}
	col, err := parseColumn(sortArgs["col"])
	if err != nil {
		return nil, err
	}
	return &Sort{Col: col, Dir: dir}, nil
}

func parseDirection(raw interface{}) (Direction, error) {
	value, ok := raw.(string)
	if !ok {
		return "", gqlerrors.BadRequest("sort dir must be asc or desc")
	}
	switch Direction(value) {
	case DirectionAsc, DirectionDesc:
		return Direction(value), nil
	default:
		return "", gqlerrors.BadRequest("sort dir must be asc or desc, got %q", value)
	}
}

func parseColumn(raw interface{}) (Column, error) {
	colArgs, ok := raw.(map[string]interface{})
	if !ok {
		return Column{}, gqlerrors.BadRequest("sort col must be an input object")
	}

	metricRaw, hasMetric := colArgs["metric"]
	hasMetric = hasMetric && metricRaw != nil
	annotationRaw, hasAnnotation := colArgs["annotationName"]
	hasAnnotation = hasAnnotation && annotationRaw != nil

	switch {
	case hasMetric && hasAnnotation:
		return Column{}, gqlerrors.BadRequest("sort col must set exactly one of metric or annotationName, not both")
	case hasMetric:
		value, ok := metricRaw.(string)
		if !ok {
			return Column{}, gqlerrors.BadRequest("sort col metric must be an enum value")
		}
		return MetricColumn(Metric(value))
	case hasAnnotation:
		value, ok := annotationRaw.(string)
		if !ok {
			return Column{}, gqlerrors.BadRequest("sort col annotationName must be a string")
		}
		return AnnotationColumn(value)
	default:
		return Column{}, gqlerrors.BadRequest("sort col must set exactly one of metric or annotationName")
	}
}
