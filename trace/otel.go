/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName identifies corevm's spans among any others sharing a process,
// grounded on junjiewwang-perf-analysis's pkg/telemetry (otel.Tracer(name)
// wired through go.opentelemetry.io/otel/sdk's TracerProvider), trimmed to
// a single in-process sink rather than that repo's OTLP gRPC/HTTP
// exporters: corevm has no collector to ship spans to, so span output is
// routed back through this package's own Trace sink instead of adding a
// second logging channel.
const tracerName = "corevm"

var tracerProvider *sdktrace.TracerProvider

// EnableOtel installs an sdktrace.TracerProvider backed by sinkExporter and
// makes it the process-wide default. Idempotent: later calls are no-ops.
// Call during startup when config.Config.OtelEnabled is set.
func EnableOtel() {
	mu.Lock()
	defer mu.Unlock()
	if tracerProvider != nil {
		return
	}
	tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(sinkExporter{}))
	otel.SetTracerProvider(tracerProvider)
}

// sinkExporter is a minimal sdktrace.SpanExporter that formats each
// finished span as a Trace line rather than shipping it to a collector.
type sinkExporter struct{}

func (sinkExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		Trace(fmt.Sprintf("span %s took %s", s.Name(), s.EndTime().Sub(s.StartTime())))
	}
	return nil
}

func (sinkExporter) Shutdown(context.Context) error { return nil }

// StartSpan opens a span named name under the corevm tracer. Callers that
// wrap class-loading or a GC cycle use this instead of importing the otel
// API directly, so EnableOtel stays the single place that API is touched.
func StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
