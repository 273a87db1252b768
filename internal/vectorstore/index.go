package vectorstore

import (
	"context"
	"fmt"
	"math"
)

// IndexKind selects the approximate-nearest-neighbor index algorithm.
type IndexKind string

const (
	IndexIVFFlat IndexKind = "ivfflat"
	IndexHNSW    IndexKind = "hnsw"
)

// HNSW build defaults, matching pgvector's own.
const (
	defaultHNSWM              = 16
	defaultHNSWEfConstruction = 64
)

// minIVFFlatLists keeps dynamically computed list counts usable on small
// collections.
const minIVFFlatLists = 10

// IndexConfig describes the ANN index over the embedding column.
//
// IVFFlat uses Lists at build time (or a row-count-derived value when
// DynamicLists is set) and Probes per query. HNSW fixes M and
// EfConstruction at build time and tunes EfSearch per query.
type IndexConfig struct {
	Kind           IndexKind
	Name           string
	Lists          int
	DynamicLists   bool
	Probes         int
	M              int
	EfConstruction int
	EfSearch       int
}

// indexName derives the deterministic index name when none is configured.
func (c *IndexConfig) indexName(table string) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s_%s_index", table, c.Kind)
}

// opClass returns the pgvector operator class matching the metric.
func (m Metric) opClass() string {
	switch m {
	case MetricL2:
		return "vector_l2_ops"
	case MetricInnerProduct:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// dynamicLists derives the IVFFlat list count from the current row count:
// rows/1000 under one million rows, sqrt(rows) above.
func dynamicLists(rows int64) int {
	var lists int
	if rows < 1_000_000 {
		lists = int(rows / 1000)
	} else {
		lists = int(math.Sqrt(float64(rows)))
	}
	return max(lists, minIVFFlatLists)
}

// tableRows counts every row in the physical table. The index covers the
// whole table, so sizing must not use the tenant-scoped Count.
func (s *Store) tableRows(ctx context.Context) (int64, error) {
	var rows int64
	q := fmt.Sprintf("SELECT count(*) FROM %s", s.qualifiedTable())
	if err := s.pool.QueryRow(ctx, q).Scan(&rows); err != nil {
		return 0, fmt.Errorf("count rows for index sizing: %w", err)
	}
	return rows, nil
}

// Optimize builds the configured ANN index. It is idempotent and meant to
// run out-of-band, not on the request path. Without an index configuration
// it is a no-op.
func (s *Store) Optimize(ctx context.Context) error {
	if s.index == nil {
		s.logger.Debug("optimize skipped, no index configured")
		return nil
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	var stmt string
	switch s.index.Kind {
	case IndexIVFFlat:
		lists := s.index.Lists
		if s.index.DynamicLists || lists <= 0 {
			rows, err := s.tableRows(ctx)
			if err != nil {
				return err
			}
			lists = dynamicLists(rows)
		}
		stmt = fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding %s) WITH (lists = %d)",
			s.index.indexName(s.table), s.qualifiedTable(), s.metric.opClass(), lists)

	case IndexHNSW:
		m := s.index.M
		if m <= 0 {
			m = defaultHNSWM
		}
		efc := s.index.EfConstruction
		if efc <= 0 {
			efc = defaultHNSWEfConstruction
		}
		stmt = fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s) WITH (m = %d, ef_construction = %d)",
			s.index.indexName(s.table), s.qualifiedTable(), s.metric.opClass(), m, efc)

	default:
		return fmt.Errorf("unknown index kind %q", s.index.Kind)
	}

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create %s index: %w", s.index.Kind, err)
	}

	s.logger.Info("index ready", "kind", s.index.Kind, "name", s.index.indexName(s.table))
	return nil
}
