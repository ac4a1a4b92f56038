package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects log output and identifies the service.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	LogFormat   string
	Output      io.Writer
}

// Observability bundles the logger, tracer and metrics handed to every module.
type Observability struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry
	Metrics  RankingMetrics
}

// Init builds the logger, a fresh Prometheus registry and a tracer from the
// global otel provider.
func Init(cfg Config) (Observability, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return Observability{}, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "", "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return Observability{}, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "maprank"
	}
	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.String("environment", cfg.Environment),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return Observability{
		Logger:   logger,
		Tracer:   otel.Tracer(service),
		Registry: registry,
		Metrics:  NewPrometheusMetrics(registry),
	}, nil
}

// NewNoop returns an Observability that discards logs, spans and metrics.
func NewNoop() Observability {
	return Observability{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tracer:  noop.NewTracerProvider().Tracer("noop"),
		Metrics: NoOpMetrics{},
	}
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
