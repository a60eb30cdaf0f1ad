package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{}, "graylogic-nuki-test", "dev")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background()) //nolint:errcheck

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Error("span context invalid, want a recording provider even without export")
	}
}

func TestInit_EnabledWithoutEndpoint(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Enabled: true}, "graylogic-nuki-test", "dev")
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Init() error = %v, want ErrNoEndpoint", err)
	}
}

func TestInit_Enabled(t *testing.T) {
	// The exporter connects lazily, so an unreachable collector is fine here.
	cfg := config.TracingConfig{Enabled: true, Endpoint: "127.0.0.1:4318", Insecure: true}
	shutdown, err := Init(context.Background(), cfg, "graylogic-nuki-test", "dev")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Shutdown with a cancelled context may report the unflushed batch.
	_ = shutdown(ctx)
}
