package main

import (
	"context"

	"github.com/couchbase/topogen/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
)

// initTelemetry installs a meter provider whose readings are logged when the
// returned shutdown func runs.  topogen is short lived, so nothing is
// exported.
func initTelemetry(logger *zap.Logger) (*metrics.TopogenMetrics, func()) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "topogen"),
		attribute.String("service.version", metrics.BuildVersion),
	)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)

	shutdown := func() {
		ctx := context.Background()

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			logger.Warn("failed to collect metrics", zap.Error(err))
		} else {
			logMetrics(logger, &rm)
		}

		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down meter provider", zap.Error(err))
		}
	}

	return metrics.NewTopogenMetrics(provider), shutdown
}

func logMetrics(logger *zap.Logger, rm *metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			logger.Debug("metric", zap.String("name", m.Name), zap.Int64("value", total))
		}
	}
}
