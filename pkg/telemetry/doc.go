// Package telemetry provides observability instrumentation for Amber.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), and metrics (Prometheus) into one configurable
// surface shared by the library and the CLI.
//
// Initialize telemetry once at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "my-service"
//
//	logger, err := telemetry.NewLogger(cfg.Logging)
//	if err != nil {
//	    panic(err)
//	}
//
//	metrics, err := telemetry.NewMetrics(cfg.Metrics)
//	if err != nil {
//	    panic(err)
//	}
//
//	tracer, err := telemetry.NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
//	if err != nil {
//	    panic(err)
//	}
//	defer tracer.Shutdown(context.Background())
//
// Component loggers carry a "component" field; per-resource compute
// logs are mirrored into the resource's run log through NewSinkLogger.
package telemetry
