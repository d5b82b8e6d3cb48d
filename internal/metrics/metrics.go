package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/brybell/backend/internal/config"
)

// Metrics methods are nil-safe so services run with telemetry disabled.
type Metrics struct {
	RequestsTotal   metric.Int64Counter
	RequestErrors   metric.Int64Counter
	RequestDuration metric.Float64Histogram

	OrdersCreated metric.Int64Counter
	RevenueTotal  metric.Float64Counter
}

// Init builds an OTLP HTTP meter provider and the instrument set. It returns
// (nil, nil, nil) when no exporter endpoint is configured.
func Init(ctx context.Context, cfg config.TelemetryConfig, serviceName string) (*Metrics, *sdkmetric.MeterProvider, error) {
	if cfg.Endpoint == "" {
		return nil, nil, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build resource: %w", err)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	m := &Metrics{}

	if m.RequestsTotal, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Total HTTP requests"), metric.WithUnit("1")); err != nil {
		return nil, nil, fmt.Errorf("create request counter: %w", err)
	}
	if m.RequestErrors, err = meter.Int64Counter("http.server.request.error.count",
		metric.WithDescription("HTTP requests that failed"), metric.WithUnit("1")); err != nil {
		return nil, nil, fmt.Errorf("create error counter: %w", err)
	}
	if m.RequestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("ms")); err != nil {
		return nil, nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.OrdersCreated, err = meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created"), metric.WithUnit("1")); err != nil {
		return nil, nil, fmt.Errorf("create orders counter: %w", err)
	}
	if m.RevenueTotal, err = meter.Float64Counter("revenue_total",
		metric.WithDescription("Revenue from paid orders"), metric.WithUnit("USD")); err != nil {
		return nil, nil, fmt.Errorf("create revenue counter: %w", err)
	}

	return m, provider, nil
}

func (m *Metrics) AddOrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.OrdersCreated.Add(ctx, 1)
}

func (m *Metrics) AddRevenue(ctx context.Context, amount float64) {
	if m == nil {
		return
	}
	m.RevenueTotal.Add(ctx, amount)
}
