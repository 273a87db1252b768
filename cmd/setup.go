package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/sreddy75/kr8-vector/internal/config"
	"github.com/sreddy75/kr8-vector/internal/embedder"
	"github.com/sreddy75/kr8-vector/internal/observability"
	"github.com/sreddy75/kr8-vector/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

// app bundles the wired dependencies shared by the data-path commands.
type app struct {
	cfg           *config.Config
	store         *vectorstore.Store
	logger        *slog.Logger
	traceShutdown func(context.Context) error
}

// setup loads configuration and wires the embedder, tracing and store.
// Every data-path command goes through here so they all see the same
// collection resolution and tenant scoping.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	traceShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		Environment: cfg.Otel.Environment,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	var emb embedder.Embedder = embedder.NewGenkit(
		googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel),
		cfg.EmbedderDimensions,
	)
	if cfg.EmbedderRPS > 0 {
		emb = embedder.NewRateLimited(emb, cfg.EmbedderRPS, cfg.EmbedderBurst)
	}

	opts := []vectorstore.Option{
		vectorstore.WithLogger(logger),
		vectorstore.WithSchema(cfg.Schema),
		vectorstore.WithTenant(cfg.OrgIDPtr(), cfg.UserIDPtr()),
		vectorstore.WithProject(cfg.Project),
		vectorstore.WithMetric(vectorstore.Metric(cfg.Metric)),
	}
	if cfg.BatchSize > 0 {
		opts = append(opts, vectorstore.WithBatchSize(cfg.BatchSize))
	}
	if cfg.Workers > 0 {
		opts = append(opts, vectorstore.WithWorkers(cfg.Workers))
	}
	if cfg.Index.Kind != "" {
		opts = append(opts, vectorstore.WithIndex(vectorstore.IndexConfig{
			Kind:           vectorstore.IndexKind(cfg.Index.Kind),
			Name:           cfg.Index.Name,
			Lists:          cfg.Index.Lists,
			DynamicLists:   cfg.Index.DynamicLists,
			Probes:         cfg.Index.Probes,
			M:              cfg.Index.M,
			EfConstruction: cfg.Index.EfConstruction,
			EfSearch:       cfg.Index.EfSearch,
		}))
	}

	store, err := vectorstore.New(ctx, cfg.PostgresURL(), emb, cfg.Collection, opts...)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return &app{cfg: cfg, store: store, logger: logger, traceShutdown: traceShutdown}, nil
}

// close releases the store and flushes pending trace spans.
func (a *app) close() {
	a.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.traceShutdown(ctx); err != nil {
		a.logger.Warn("trace shutdown error", "error", err)
	}
}
