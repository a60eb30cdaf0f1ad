// Package tracing configures OpenTelemetry for the service.
//
// Bridge attempts and control-plane HTTP requests create spans through the
// global tracer provider installed by Init. Export uses OTLP over HTTP and
// is optional.
//
// # Usage
//
//	shutdown, err := tracing.Init(ctx, cfg.Tracing, "graylogic-nuki", version)
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
package tracing
