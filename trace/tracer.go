package trace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liuxd6825/quizsmoke/env"
)

const tracerName = "quizsmoke.scenario"

// Tracer starts spans that carry the run metadata.
type Tracer struct {
	trace.Tracer

	metadata []attribute.KeyValue
}

// NewTracer creates a new Tracer from the given TracerProvider.
func NewTracer(tp trace.TracerProvider, metadata map[string]string, options ...trace.TracerOption) *Tracer {
	return &Tracer{
		Tracer:   tp.Tracer(tracerName, options...),
		metadata: buildMetadataAttributes(metadata),
	}
}

// Start overrides the underlying OTEL tracer method to include the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(t.metadata...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func buildMetadataAttributes(metadata map[string]string) []attribute.KeyValue {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, metadata[k]))
	}
	return attrs
}

// ParseMetadata reads the key=value pairs of QUIZSMOKE_TRACES_METADATA.
func ParseMetadata(lookup env.LookupFunc) (map[string]string, error) {
	m := make(map[string]string)
	v, ok := lookup(env.TracesMetadata)
	if !ok || v == "" {
		return m, nil
	}

	for _, elem := range strings.Split(v, ",") {
		kv := strings.Split(elem, "=")
		if len(kv) != 2 {
			return nil, fmt.Errorf("%q is not a valid key=value metadata", elem)
		}
		m[kv[0]] = kv[1]
	}

	return m, nil
}
