package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"experiment-graphql/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware wraps GraphQL execution in a span annotated with
// the parsed operation shape.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query, operationName := extractGraphQLRequest(r)
			if strings.TrimSpace(query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("experiment-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				attrs := []attribute.KeyValue{
					attribute.Int("graphql.request.query_length", len(query)),
				}
				if operationName != "" {
					attrs = append(attrs, attribute.String("graphql.operation.name", operationName))
				}
				if meta, err := extractQueryMetadata(query, operationName); err == nil && meta != nil {
					attrs = append(attrs,
						attribute.String("graphql.operation.type", meta.operationType),
						attribute.Int("graphql.request.field_count", meta.fieldCount),
						attribute.Int("graphql.request.selection_depth", meta.selectionDepth),
						attribute.Int("graphql.request.variable_count", meta.variableCount),
					)
				}
				span.SetAttributes(attrs...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
