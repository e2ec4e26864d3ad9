// Package telemetry sets up OpenTelemetry tracing and metrics export for the
// reviewd binaries.
//
// Usage:
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, "worker", version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporters speak OTLP over gRPC (default) or HTTP. Insecure export is only
// allowed to local endpoints. When an exporter cannot be created the
// instance is marked degraded and the global no-op providers stay in place.
package telemetry
