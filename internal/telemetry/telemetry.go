package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the OTLP trace and metric providers for one process.
// Construction never fails on exporter trouble; the instance records
// the failure and serves no-op instruments instead.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	bridgeProvider log.LoggerProvider

	healthy  atomic.Bool
	degraded atomic.Bool
	reason   string
}

// signalProvider is the lifecycle surface the trace and metric
// providers share.
type signalProvider interface {
	Shutdown(context.Context) error
	ForceFlush(context.Context) error
}

type namedProvider struct {
	name string
	signalProvider
}

// New validates cfg and, when telemetry is enabled, stands up the
// providers and installs them as the process-wide defaults. A
// disabled config yields a working instance whose instruments are
// no-ops.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	t.healthy.Store(true)

	if cfg.Enabled {
		t.initProviders(ctx)
	}
	return t, nil
}

// initProviders builds the trace and metric providers. Each signal
// fails independently so a broken metrics endpoint does not take
// tracing down with it.
func (t *Telemetry) initProviders(ctx context.Context) {
	res, err := newResource(t.config)
	if err != nil {
		t.setDegraded("resource", err)
		return
	}

	if tp, err := newTracerProvider(ctx, t.config, res); err != nil {
		t.setDegraded("tracer provider", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, t.config, res); err != nil {
		t.setDegraded("meter provider", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// setDegraded records an initialization failure, keeping the first
// one as the reason. New runs single-threaded so the plain string
// write is safe.
func (t *Telemetry) setDegraded(stage string, err error) {
	t.degraded.Store(true)
	if t.reason == "" {
		t.reason = stage + ": " + err.Error()
	}
}

// signalProviders lists the providers that actually initialized,
// paired with the names used in error wrapping.
func (t *Telemetry) signalProviders() []namedProvider {
	var ps []namedProvider
	if t.tracerProvider != nil {
		ps = append(ps, namedProvider{"trace", t.tracerProvider})
	}
	if t.meterProvider != nil {
		ps = append(ps, namedProvider{"metric", t.meterProvider})
	}
	return ps
}

// Tracer returns a tracer for the instrumentation scope. Disabled or
// degraded instances hand back the globally installed provider's
// tracer, which is a no-op unless something else installed one.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t != nil && t.tracerProvider != nil {
		return t.tracerProvider.Tracer(name, opts...)
	}
	return otel.GetTracerProvider().Tracer(name, opts...)
}

// Meter returns a meter for the instrumentation scope, falling back
// the same way Tracer does.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t != nil && t.meterProvider != nil {
		return t.meterProvider.Meter(name, opts...)
	}
	return otel.GetMeterProvider().Meter(name, opts...)
}

// LoggerProvider returns the provider for the OTEL log bridge, nil
// when none was attached.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.bridgeProvider
}

// SetLoggerProvider attaches the provider the log bridge should use.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.bridgeProvider = lp
	}
}

// Shutdown flushes and stops every initialized provider. When the
// caller's context has no deadline, the configured shutdown timeout
// bounds the wait.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	ctx, cancel := t.shutdownContext(ctx)
	defer cancel()

	var errs []error
	for _, p := range t.signalProviders() {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s provider shutdown: %w", p.name, err))
		}
	}
	t.healthy.Store(false)
	return errors.Join(errs...)
}

// shutdownContext applies the configured timeout when the caller gave
// no deadline of its own.
func (t *Telemetry) shutdownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || t.config == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
}

// ForceFlush exports pending spans and metrics without stopping the
// providers.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	for _, p := range t.signalProviders() {
		if err := p.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s flush: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus reports whether telemetry is serving and why not when
// it is not.
type HealthStatus struct {
	Healthy  bool
	Degraded bool
	// Reason holds the first initialization failure when degraded.
	Reason string
}

// Health snapshots the instance state. A nil receiver reports
// degraded, matching the zero-value-is-unusable contract.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true, Reason: "telemetry not initialized"}
	}
	return HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
		Reason:   t.reason,
	}
}

// IsEnabled reports whether telemetry was configured on and has not
// been shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.healthy.Load()
}
