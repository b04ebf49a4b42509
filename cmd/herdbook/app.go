package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"herdbook/internal/blob"
	"herdbook/internal/config"
	"herdbook/internal/core"
	"herdbook/internal/reports"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
	out        io.Writer
	errOut     io.Writer
}

// runtime is an opened service plus whatever needs closing afterwards.
type runtime struct {
	svc      *core.Service
	store    core.PersistentStore
	registry *prometheus.Registry
}

func (r *runtime) Close() error {
	return core.CloseStore(r.store)
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = *cfg
	logger, err := buildLogger(cfg.LogLevel, a.errOut)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func buildLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	zcore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(zcore), nil
}

// open wires the configured store into a service. Metrics go to a private
// registry so serve can expose them.
func (a *app) open(ctx context.Context) (*runtime, error) {
	logger := core.NewZapLogger(a.logger)
	env, err := core.ParseEnvironmentClass(a.cfg.Environment)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, a.cfg.Storage, core.NewDefaultRulesEngine(logger))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Storage.Driver, err)
	}
	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = core.CloseStore(store)
		return nil, err
	}
	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithEnvironment(env),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(auditLog{logger: a.logger}),
		core.WithDepthBatchSize(a.cfg.Analysis.DepthBatchSize),
		core.WithCacheSize(a.cfg.Analysis.CacheSize),
	)
	return &runtime{svc: svc, store: store, registry: registry}, nil
}

func (a *app) exporter(ctx context.Context) (*reports.Exporter, error) {
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s artifact store: %w", a.cfg.Blob.Driver, err)
	}
	return reports.NewExporter(store), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// auditLog writes audit entries to the structured log.
type auditLog struct {
	logger *zap.Logger
}

func (l auditLog) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("status", string(e.Status)),
		zap.String("entity_id", e.EntityID),
		zap.Time("at", e.Timestamp),
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
		l.logger.Warn("audit", fields...)
		return
	}
	l.logger.Info("audit", fields...)
}
