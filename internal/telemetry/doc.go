// Package telemetry bootstraps OpenTelemetry tracing and metrics for
// applications embedding steward.
//
// # Overview
//
// New wires OTLP trace and metric exporters (gRPC or HTTP) against a
// collector endpoint and installs the resulting providers globally.
// Library packages never import this package. They call otel.Tracer
// and otel.Meter through the API and pick up whatever providers the
// application installed, or the SDK's no-ops when it installed none.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("steward.pipeline")
//	ctx, span := tracer.Start(ctx, "pipeline.transition")
//	defer span.End()
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  service_name: "steward"
//	  sampling:
//	    rate: 0.1
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// Sampling defaults to everything; production deployments usually dial
// rate down. Plain-HTTP collectors on non-local endpoints must opt in
// via the insecure flag.
//
// # Degradation
//
// Exporter or resource failures never abort startup. The instance
// marks itself degraded, keeps whatever providers did initialize, and
// reports the first failure through Health().Reason.
//
// # Testing
//
// NewTestTelemetry records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "probe")
//	span.End()
//	tt.AssertSpanExists(t, "probe")
package telemetry
