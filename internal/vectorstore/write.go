package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sreddy75/kr8-vector/internal/document"
	"github.com/sreddy75/kr8-vector/internal/embedder"
)

// IngestError records one document that failed during a batch.
type IngestError struct {
	ID   string
	Name string
	Err  error
}

func (e IngestError) Error() string {
	return fmt.Sprintf("document %q (%s): %v", e.ID, e.Name, e.Err)
}

// IngestResult summarizes a batch write. Per-document failures do not abort
// the batch; callers inspect Errors for an itemized account.
type IngestResult struct {
	JobID     string
	Succeeded int
	Failed    int
	Errors    []IngestError
}

// Insert persists documents with plain inserts. Embeddings are computed
// from content; commits happen every batch-size documents with a final
// commit for the partial tail. An id or name clash surfaces as a
// per-document error in the result.
func (s *Store) Insert(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	return s.ingest(ctx, docs, s.insertBatchSize, false)
}

// Upsert persists documents with insert-or-update-on-conflict keyed by id.
// A document without an explicit id collapses onto the row addressed by its
// content hash. On conflict every mutable column is overwritten.
func (s *Store) Upsert(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	return s.ingest(ctx, docs, s.upsertBatchSize, true)
}

// InsertConcurrent runs insert batches on the configured worker pool.
// Requires WithWorkers; fails fast with ErrWorkersNotConfigured otherwise.
func (s *Store) InsertConcurrent(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	return s.ingestConcurrent(ctx, docs, s.insertBatchSize, false)
}

// UpsertConcurrent runs upsert batches on the configured worker pool.
// Requires WithWorkers; fails fast with ErrWorkersNotConfigured otherwise.
func (s *Store) UpsertConcurrent(ctx context.Context, docs []document.Document) (*IngestResult, error) {
	return s.ingestConcurrent(ctx, docs, s.upsertBatchSize, true)
}

func (s *Store) ingest(ctx context.Context, docs []document.Document, batchSize int, upsert bool) (*IngestResult, error) {
	ctx, span := s.startIngestSpan(ctx, len(docs), upsert, false)
	defer span.End()

	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	res := &IngestResult{JobID: uuid.NewString()}
	var mu sync.Mutex
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		if err := s.ingestBatch(ctx, docs[start:end], upsert, res, &mu); err != nil {
			return res, err
		}
	}

	s.logger.Debug("ingest finished",
		"job_id", res.JobID, "succeeded", res.Succeeded, "failed", res.Failed, "upsert", upsert)
	return res, nil
}

func (s *Store) ingestConcurrent(ctx context.Context, docs []document.Document, batchSize int, upsert bool) (*IngestResult, error) {
	if s.workers <= 0 {
		return nil, ErrWorkersNotConfigured
	}

	ctx, span := s.startIngestSpan(ctx, len(docs), upsert, true)
	defer span.End()

	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	res := &IngestResult{JobID: uuid.NewString()}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(docs); start += batchSize {
		batch := docs[start:min(start+batchSize, len(docs))]
		g.Go(func() error {
			return s.ingestBatch(gctx, batch, upsert, res, &mu)
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	s.logger.Debug("concurrent ingest finished",
		"job_id", res.JobID, "succeeded", res.Succeeded, "failed", res.Failed, "upsert", upsert)
	return res, nil
}

// ingestBatch writes one batch inside one transaction. Each document runs
// under a savepoint so a failed statement does not poison the batch; the
// failure is recorded and the loop continues.
func (s *Store) ingestBatch(ctx context.Context, docs []document.Document, upsert bool, res *IngestResult, mu *sync.Mutex) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for i := range docs {
		doc := &docs[i]
		if err := s.prepareDocument(ctx, doc, now); err != nil {
			s.recordFailure(res, mu, doc, err)
			continue
		}

		stmt, args, err := s.writeStatement(doc, upsert, now)
		if err != nil {
			s.recordFailure(res, mu, doc, err)
			continue
		}

		sp, err := tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if _, err := sp.Exec(ctx, stmt, args...); err != nil {
			_ = sp.Rollback(ctx)
			s.recordFailure(res, mu, doc, err)
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			s.recordFailure(res, mu, doc, err)
			continue
		}

		mu.Lock()
		res.Succeeded++
		mu.Unlock()
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) recordFailure(res *IngestResult, mu *sync.Mutex, doc *document.Document, err error) {
	s.logger.Warn("document ingest failed", "id", doc.ID, "name", doc.Name, "error", err)
	mu.Lock()
	res.Failed++
	res.Errors = append(res.Errors, IngestError{ID: doc.ID, Name: doc.Name, Err: err})
	mu.Unlock()
}

// prepareDocument cleans content, computes the content hash and fallback id,
// generates the embedding, merges embedder usage stats, and stamps the
// tenant identity. The embedding is always recomputed from content, never
// trusted from the caller.
func (s *Store) prepareDocument(ctx context.Context, doc *document.Document, now time.Time) error {
	content := doc.Prepare()

	vec, usage, err := s.emb.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed document %q: %w", doc.ID, err)
	}
	if len(vec) != s.dims {
		return fmt.Errorf("%w: document %q: got %d, want %d",
			embedder.ErrDimensionMismatch, doc.ID, len(vec), s.dims)
	}
	doc.Embedding = vec

	if doc.Usage == nil {
		doc.Usage = make(map[string]any)
	}
	for k, v := range usage {
		doc.Usage[k] = v
	}
	if _, ok := doc.Usage[document.UsageCreatedAt]; !ok {
		doc.Usage[document.UsageCreatedAt] = now.Format(time.RFC3339)
	}
	doc.Usage[document.UsageUpdatedAt] = now.Format(time.RFC3339)

	if doc.UserID == nil {
		doc.UserID = s.userID
	}
	if doc.OrgID == nil {
		doc.OrgID = s.orgID
	}
	return nil
}

// mutable columns overwritten on id conflict.
var upsertColumns = map[string]bool{
	"name":         true,
	"meta_data":    true,
	"content":      true,
	"embedding":    true,
	"usage":        true,
	"content_hash": true,
	"updated_at":   true,
}

// writeStatement builds the INSERT (or INSERT ... ON CONFLICT) for one
// document over the intersection of document fields and physical columns.
// This is the single statement-building path shared by the sequential and
// concurrent variants.
func (s *Store) writeStatement(doc *document.Document, upsert bool, now time.Time) (string, []any, error) {
	cols := make([]string, 0, len(s.columns))
	args := make([]any, 0, len(s.columns))
	for _, col := range s.columns {
		v, ok, err := columnValue(doc, col, now)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			continue
		}
		cols = append(cols, col)
		args = append(args, v)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		s.qualifiedTable(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if upsert {
		sets := make([]string, 0, len(cols))
		for _, col := range cols {
			if upsertColumns[col] {
				sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
			}
		}
		fmt.Fprintf(&b, " ON CONFLICT (id) DO UPDATE SET %s", strings.Join(sets, ", "))
	}

	return b.String(), args, nil
}

// columnValue maps a physical column to its value for the given document.
// Columns outside the document model report ok=false and are skipped.
func columnValue(doc *document.Document, col string, now time.Time) (any, bool, error) {
	switch col {
	case "id":
		return doc.ID, true, nil
	case "name":
		return doc.Name, true, nil
	case "content":
		return doc.Content, true, nil
	case "embedding":
		return pgvector.NewVector(doc.Embedding), true, nil
	case "content_hash":
		return doc.ContentHash, true, nil
	case "user_id":
		return doc.UserID, true, nil
	case "org_id":
		return doc.OrgID, true, nil
	case "created_at", "updated_at":
		return now, true, nil
	case "meta_data":
		b, err := marshalJSONMap(doc.MetaData)
		if err != nil {
			return nil, false, fmt.Errorf("marshal meta_data: %w", err)
		}
		return b, true, nil
	case "usage":
		b, err := marshalJSONMap(doc.Usage)
		if err != nil {
			return nil, false, fmt.Errorf("marshal usage: %w", err)
		}
		return b, true, nil
	default:
		return nil, false, nil
	}
}

func marshalJSONMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (s *Store) startIngestSpan(ctx context.Context, n int, upsert, concurrent bool) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "vectorstore.ingest", trace.WithAttributes(
		attribute.String("collection", s.table),
		attribute.Int("documents", n),
		attribute.Bool("upsert", upsert),
		attribute.Bool("concurrent", concurrent),
	))
}
