// Package vectorstore implements a multi-tenant embedding store over
// PostgreSQL with the pgvector extension.
//
// One Store manages one collection: a physical table whose name is derived
// from the tenant identity (org, user, base collection, optional project
// namespace). Documents are embedded at write time, deduplicated by content
// hash, and retrieved by vector similarity with per-row usage tracking.
//
// The table is created lazily on first write or search. Search never
// propagates execution errors: it degrades to an empty result and
// self-heals the schema for the next call.
package vectorstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreddy75/kr8-vector/internal/embedder"
)

// Metric selects the distance function used for similarity ranking.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricL2           Metric = "l2"
	MetricInnerProduct Metric = "inner_product"
)

// DefaultSchema is the PostgreSQL schema holding collection tables.
const DefaultSchema = "ai"

// Batch commit cadence defaults. Commits happen every batch, bounding
// transaction size on bulk loads while still batching for throughput.
const (
	DefaultInsertBatchSize = 10
	DefaultUpsertBatchSize = 20
)

// Store is a tenant-scoped vector collection. It is safe for concurrent use
// by multiple goroutines; every public operation opens and closes its own
// transaction.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
	connURL  string
	emb      embedder.Embedder
	logger   *slog.Logger
	tracer   trace.Tracer

	schema  string
	base    string
	project string
	table   string
	dims    int
	metric  Metric
	index   *IndexConfig

	insertBatchSize int
	upsertBatchSize int
	workers         int

	orgID  *int
	userID *int

	customTable bool
	columns     []string

	mu         sync.Mutex
	tableReady bool
}

// Option configures a Store.
type Option func(*Store)

// WithPool supplies an existing connection pool, mutually exclusive with
// passing a connection URL to New. The caller keeps ownership; Close will
// not close it.
func WithPool(pool *pgxpool.Pool) Option {
	return func(s *Store) { s.pool = pool }
}

// WithLogger sets the logger (nil = slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchema overrides the PostgreSQL schema (default "ai").
func WithSchema(schema string) Option {
	return func(s *Store) {
		if schema != "" {
			s.schema = schema
		}
	}
}

// WithTenant scopes the store to an organization and/or user. Both feed the
// collection name; a non-nil userID additionally filters and stamps every
// read, write and delete.
func WithTenant(orgID, userID *int) Option {
	return func(s *Store) {
		s.orgID = orgID
		s.userID = userID
	}
}

// WithProject appends a project namespace segment to the collection name.
func WithProject(project string) Option {
	return func(s *Store) { s.project = project }
}

// WithMetric selects the distance metric (default cosine).
func WithMetric(m Metric) Option {
	return func(s *Store) { s.metric = m }
}

// WithIndex configures the ANN index built by Optimize and the per-query
// tuning parameters pushed before each search.
func WithIndex(cfg IndexConfig) Option {
	return func(s *Store) { s.index = &cfg }
}

// WithBatchSize overrides the commit cadence for both insert and upsert.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.insertBatchSize = n
			s.upsertBatchSize = n
		}
	}
}

// WithWorkers enables the concurrent ingest paths with n parallel batch
// workers. Without this option InsertConcurrent and UpsertConcurrent fail
// fast with ErrWorkersNotConfigured.
func WithWorkers(n int) Option {
	return func(s *Store) { s.workers = n }
}

// WithExistingTable points the store at a custom pre-existing table instead
// of a derived collection. Required columns are appended if missing; writes
// populate the intersection of document fields and the table's columns.
func WithExistingTable(name string) Option {
	return func(s *Store) {
		s.table = name
		s.customTable = true
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// search and ingest spans (default: global provider; noop if unset).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer("vectorstore")
		}
	}
}

// New creates a Store for the given base collection.
//
// Exactly one of WithPool or a non-empty connURL must be supplied. When a
// connURL is given the store owns the resulting pool and Close releases it;
// pgvector codecs are registered on every connection.
func New(ctx context.Context, connURL string, emb embedder.Embedder, collection string, opts ...Option) (*Store, error) {
	if emb == nil {
		return nil, ErrNoEmbedder
	}

	s := &Store{
		emb:             emb,
		logger:          slog.Default(),
		tracer:          otel.Tracer("vectorstore"),
		schema:          DefaultSchema,
		base:            collection,
		dims:            emb.Dimensions(),
		metric:          MetricCosine,
		insertBatchSize: DefaultInsertBatchSize,
		upsertBatchSize: DefaultUpsertBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.base == "" && !s.customTable {
		return nil, ErrNoCollection
	}

	switch {
	case s.pool == nil && connURL == "":
		return nil, ErrNoConnection
	case s.pool != nil && connURL != "":
		return nil, ErrBothConnections
	case s.pool == nil:
		pool, err := newPool(ctx, connURL)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.ownsPool = true
		s.connURL = connURL
	}

	if !s.customTable {
		s.table = CollectionName(s.base, s.orgID, s.userID, s.project)
		s.columns = baseColumns
	}

	s.logger = s.logger.With("component", "vectorstore", "collection", s.table)
	return s, nil
}

// Close releases the connection pool if the store owns it.
func (s *Store) Close() {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
}

// Collection returns the resolved physical table name.
func (s *Store) Collection() string {
	return s.table
}

// newPool builds a pool that registers pgvector types on every connection.
func newPool(ctx context.Context, connURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
