// Package tracing はOpenTelemetryのトレーサープロバイダーを初期化する。
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

// ServiceName はリソース属性に設定するサービス名。
const ServiceName = "autowheel"

// Init はOTLP/gRPCエクスポーターでトレーサープロバイダーを初期化し、グローバルに設定する。
// endpointが空の場合は何もせず、no-opのシャットダウン関数を返す。
func Init(ctx context.Context, endpoint string, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		logger.Info("tracing disabled", slog.String("reason", "OTEL_EXPORTER_OTLP_ENDPOINT is not set"))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("OTLPエクスポーターの初期化に失敗しました: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("トレースリソースの作成に失敗しました: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("tracing enabled", slog.String("endpoint", endpoint))
	return tp.Shutdown, nil
}
