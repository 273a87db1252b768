package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sreddy75/kr8-vector/internal/document"
)

// DefaultSearchLimit is the number of results returned when no limit is set.
const DefaultSearchLimit = 5

// Result is one search hit: the reconstructed document and its similarity
// score. For cosine the score is 1 - distance; for inner product it is the
// (positive) inner product; for L2 it is the negated distance, so higher is
// always better.
type Result struct {
	Document document.Document
	Score    float64
}

// SearchOption configures a search call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit   int
	filters map[string]any
}

// WithLimit caps the number of results (default 5).
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithFilter adds an equality predicate on a physical column. Filters on
// keys that are not real columns are silently ignored. Multiple filters
// combine with AND.
func WithFilter(key string, value any) SearchOption {
	return func(c *searchConfig) {
		if c.filters == nil {
			c.filters = make(map[string]any)
		}
		c.filters[key] = value
	}
}

// Search embeds the query and returns the closest documents under the
// configured metric, updating each returned row's usage statistics.
//
// Search degrades rather than breaks: an embedding failure or a missing
// table yields an empty result, and the missing table is created so the
// next call succeeds. Only a failed self-heal propagates as an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := &searchConfig{limit: DefaultSearchLimit}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, span := s.tracer.Start(ctx, "vectorstore.search", trace.WithAttributes(
		attribute.String("collection", s.table),
		attribute.Int("limit", cfg.limit),
		attribute.String("metric", string(s.metric)),
	))
	defer span.End()

	vec, _, err := s.emb.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, returning empty result", "error", err)
		return nil, nil
	}

	stmt, args := s.searchStatement(vec, cfg)

	docs, distances, err := s.runSearch(ctx, stmt, args)
	if err != nil {
		s.logger.Warn("search failed, healing schema and returning empty result", "error", err)
		if healErr := s.healTable(ctx); healErr != nil {
			return nil, fmt.Errorf("search failed and schema creation failed: %w", healErr)
		}
		return nil, nil
	}

	now := time.Now().UTC()
	results := make([]Result, 0, len(docs))
	for i := range docs {
		score := s.metric.score(distances[i])
		docs[i].RecordAccess(score, now)
		results = append(results, Result{Document: docs[i], Score: score})
	}

	s.updateUsage(ctx, results)
	return results, nil
}

// runSearch executes the search statement in its own transaction so the
// per-session index tuning applies to this query only.
func (s *Store) runSearch(ctx context.Context, stmt string, args []any) ([]document.Document, []float64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, tuning := range s.tuningStatements() {
		if _, err := tx.Exec(ctx, tuning); err != nil {
			return nil, nil, err
		}
	}

	rows, err := tx.Query(ctx, stmt, args...)
	if err != nil {
		return nil, nil, err
	}
	docs, distances, err := s.scanDocuments(rows)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return docs, distances, nil
}

// searchStatement builds the distance-ordered selection. Filters apply only
// to keys that exist as physical columns; a tenant-scoped store always adds
// the user_id predicate; callers cannot opt out.
func (s *Store) searchStatement(vec []float32, cfg *searchConfig) (string, []any) {
	op := s.metric.operator()
	args := []any{pgvector.NewVector(vec)}

	var conds []string
	for _, key := range sortedFilterKeys(cfg.filters) {
		if key == "embedding" || !s.hasColumn(key) {
			s.logger.Debug("ignoring filter on unknown column", "key", key)
			continue
		}
		args = append(args, cfg.filters[key])
		conds = append(conds, fmt.Sprintf("%s = $%d", pgx.Identifier{key}.Sanitize(), len(args)))
	}
	if s.userID != nil && s.hasColumn("user_id") {
		args = append(args, *s.userID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, (embedding %s $1::vector) AS distance FROM %s",
		strings.Join(s.columns, ", "), op, s.qualifiedTable())
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	args = append(args, cfg.limit)
	fmt.Fprintf(&b, " ORDER BY embedding %s $1::vector LIMIT $%d", op, len(args))

	return b.String(), args
}

// tuningStatements returns the SET LOCAL commands pushing the configured
// recall/speed tradeoff for this transaction only, not globally.
func (s *Store) tuningStatements() []string {
	if s.index == nil {
		return nil
	}
	switch s.index.Kind {
	case IndexIVFFlat:
		if s.index.Probes > 0 {
			return []string{fmt.Sprintf("SET LOCAL ivfflat.probes = %d", s.index.Probes)}
		}
	case IndexHNSW:
		if s.index.EfSearch > 0 {
			return []string{fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", s.index.EfSearch)}
		}
	}
	return nil
}

// updateUsage persists access bookkeeping for retrieved rows. It runs
// outside the search transaction and is best-effort: failures are logged,
// never surfaced.
func (s *Store) updateUsage(ctx context.Context, results []Result) {
	if !s.hasColumn("usage") {
		return
	}
	stmt := fmt.Sprintf("UPDATE %s SET usage = $1 WHERE id = $2", s.qualifiedTable())
	for i := range results {
		doc := &results[i].Document
		b, err := json.Marshal(doc.Usage)
		if err != nil {
			s.logger.Warn("usage marshal failed", "id", doc.ID, "error", err)
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt, b, doc.ID); err != nil {
			s.logger.Warn("usage update failed", "id", doc.ID, "error", err)
		}
	}
}

// operator returns the pgvector distance operator for the metric. L2 orders
// by true l2_distance ascending.
func (m Metric) operator() string {
	switch m {
	case MetricL2:
		return "<->"
	case MetricInnerProduct:
		return "<#>"
	default:
		return "<=>"
	}
}

// score converts a raw distance into a higher-is-better similarity.
// <#> returns the negated inner product, so negating it restores the
// actual inner product.
func (m Metric) score(distance float64) float64 {
	switch m {
	case MetricL2:
		return -distance
	case MetricInnerProduct:
		return -distance
	default:
		return 1 - distance
	}
}

func sortedFilterKeys(filters map[string]any) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
