//go:build integration
// +build integration

package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/sreddy75/kr8-vector/internal/document"
	"github.com/sreddy75/kr8-vector/internal/testutil"
)

var sharedDB *testutil.TestDBContainer

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	sharedDB, cleanup, err = testutil.SetupTestDBForMain()
	if err != nil {
		log.Fatalf("starting test database: %v", err)
	}
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// newIntegrationStore builds a store on the shared container with a
// deterministic embedder. Each test passes a unique collection so tests
// stay isolated within the shared database.
func newIntegrationStore(t *testing.T, collection string, emb *testutil.StubEmbedder, opts ...Option) *Store {
	t.Helper()
	if emb == nil {
		emb = &testutil.StubEmbedder{
			Dims:     3,
			Fallback: []float32{0.5, 0.5, 0.5},
			Vectors: map[string][]float32{
				"alpha doc":   {1, 0, 0},
				"beta doc":    {0, 1, 0},
				"alpha query": {0.9, 0.1, 0},
			},
		}
	}
	opts = append([]Option{WithPool(sharedDB.Pool)}, opts...)
	s, err := New(context.Background(), "", emb, collection, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndTableExists(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_create", nil)

	exists, err := s.TableExists(ctx)
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if exists {
		t.Fatal("table exists before Create")
	}

	if err := s.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Idempotent.
	if err := s.Create(ctx); err != nil {
		t.Fatalf("second Create: %v", err)
	}

	exists, err = s.TableExists(ctx)
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if !exists {
		t.Fatal("table missing after Create")
	}
}

func TestInsertProvisionsFreshDatabase(t *testing.T) {
	ctx := context.Background()

	// A database where the vector extension was never enabled. The first
	// write over a store-owned pool must enable it, even though the pool's
	// connect hook needs the vector type to register codecs.
	if _, err := sharedDB.Pool.Exec(ctx, "CREATE DATABASE it_fresh"); err != nil {
		t.Fatalf("creating database: %v", err)
	}
	u, err := url.Parse(sharedDB.ConnStr)
	if err != nil {
		t.Fatalf("parsing connection string: %v", err)
	}
	u.Path = "/it_fresh"

	emb := &testutil.StubEmbedder{Dims: 3, Fallback: []float32{0.5, 0.5, 0.5}}
	s, err := New(ctx, u.String(), emb, "it_fresh_docs")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)

	res, err := s.Insert(ctx, []document.Document{{Name: "a", Content: "alpha doc"}})
	if err != nil {
		t.Fatalf("Insert on fresh database: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 {
		t.Fatalf("result = %d/%d, want 1/0", res.Succeeded, res.Failed)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestInsertAndRetrieve(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_insert", nil)

	res, err := s.Insert(ctx, []document.Document{
		{Name: "a", Content: "alpha doc"},
		{Name: "b", Content: "beta doc"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("result = %d/%d, want 2/0", res.Succeeded, res.Failed)
	}
	if res.JobID == "" {
		t.Error("JobID empty")
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}

	doc, err := s.GetDocumentByName(ctx, "a")
	if err != nil {
		t.Fatalf("GetDocumentByName: %v", err)
	}
	if doc.Content != "alpha doc" {
		t.Errorf("Content = %q", doc.Content)
	}
	if doc.ID != document.Hash("alpha doc") {
		t.Errorf("ID = %q, want content hash fallback", doc.ID)
	}
	if doc.ContentHash != doc.ID {
		t.Errorf("ContentHash = %q, want %q", doc.ContentHash, doc.ID)
	}
	if len(doc.Embedding) != 3 {
		t.Errorf("Embedding length = %d, want 3", len(doc.Embedding))
	}

	byID, err := s.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if byID.Name != "a" {
		t.Errorf("byID.Name = %q", byID.Name)
	}

	if _, err := s.GetDocumentByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetDocumentByName(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing name err = %v, want ErrNotFound", err)
	}

	all, err := s.GetAllDocuments(ctx)
	if err != nil {
		t.Fatalf("GetAllDocuments: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAllDocuments = %d docs, want 2", len(all))
	}
}

func TestExistenceChecks(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_exists", nil)

	doc := document.Document{Name: "a", Content: "alpha doc"}
	if _, err := s.Insert(ctx, []document.Document{doc}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ok, err := s.DocExists(ctx, document.Document{Content: "alpha doc"})
	if err != nil || !ok {
		t.Errorf("DocExists(same content) = %v, %v, want true", ok, err)
	}
	ok, err = s.DocExists(ctx, document.Document{Content: "other content"})
	if err != nil || ok {
		t.Errorf("DocExists(other content) = %v, %v, want false", ok, err)
	}

	ok, err = s.NameExists(ctx, "a")
	if err != nil || !ok {
		t.Errorf("NameExists(a) = %v, %v, want true", ok, err)
	}
	ok, err = s.IDExists(ctx, document.Hash("alpha doc"))
	if err != nil || !ok {
		t.Errorf("IDExists = %v, %v, want true", ok, err)
	}
}

func TestInsertDuplicateContentCollapses(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_dedup", nil)

	// Without explicit ids both documents resolve to the content hash.
	// Plain insert keeps the first and reports the second as a
	// per-document failure; the batch itself is not aborted.
	res, err := s.Insert(ctx, []document.Document{
		{Name: "first", Content: "shared content"},
		{Name: "second", Content: "shared content"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("result = %d/%d, want 1/1", res.Succeeded, res.Failed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %d entries, want 1", len(res.Errors))
	}

	count, _ := s.Count(ctx)
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}

	// Upsert overwrites instead of failing.
	res, err = s.Upsert(ctx, []document.Document{
		{Name: "third", Content: "shared content"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 {
		t.Errorf("upsert result = %d/%d, want 1/0", res.Succeeded, res.Failed)
	}

	count, _ = s.Count(ctx)
	if count != 1 {
		t.Errorf("Count after upsert = %d, want 1", count)
	}
	doc, err := s.GetDocumentByID(ctx, document.Hash("shared content"))
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if doc.Name != "third" {
		t.Errorf("Name = %q, want the upserted value", doc.Name)
	}
}

func TestBatchBoundaries(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_batches", nil, WithBatchSize(4))

	// Two full batches plus a partial tail.
	docs := make([]document.Document, 9)
	for i := range docs {
		docs[i] = document.Document{Name: fmt.Sprintf("d%d", i), Content: fmt.Sprintf("content %d", i)}
	}
	res, err := s.Insert(ctx, docs)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Succeeded != 9 {
		t.Errorf("Succeeded = %d, want 9", res.Succeeded)
	}
	count, _ := s.Count(ctx)
	if count != 9 {
		t.Errorf("Count = %d, want 9", count)
	}
}

func TestBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	emb := &testutil.StubEmbedder{
		Dims:     3,
		Fallback: []float32{0.5, 0.5, 0.5},
		FailOn:   "poison",
	}
	s := newIntegrationStore(t, "it_poison", emb, WithBatchSize(10))

	res, err := s.Insert(ctx, []document.Document{
		{Name: "ok1", Content: "fine one"},
		{Name: "bad", Content: "poison"},
		{Name: "ok2", Content: "fine two"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("result = %d/%d, want 2/1", res.Succeeded, res.Failed)
	}
	count, _ := s.Count(ctx)
	if count != 2 {
		t.Errorf("Count = %d, want the healthy documents committed", count)
	}
}

func TestNULContentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_nul", nil)

	raw := "before\x00after"
	res, err := s.Insert(ctx, []document.Document{{Name: "n", Content: raw}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("insert failed: %v", res.Errors)
	}

	doc, err := s.GetDocumentByName(ctx, "n")
	if err != nil {
		t.Fatalf("GetDocumentByName: %v", err)
	}
	if doc.Content != "before�after" {
		t.Errorf("Content = %q, want NUL replaced", doc.Content)
	}
	if doc.ID != document.Hash(raw) {
		t.Errorf("ID = %q, want hash of cleaned content", doc.ID)
	}
}

func TestSearchOrdering(t *testing.T) {
	ctx := context.Background()

	// Three embeddings at distinct distances from the query so a misplaced
	// middle element would surface, not just a swapped pair.
	emb := &testutil.StubEmbedder{
		Dims: 3,
		Vectors: map[string][]float32{
			"alpha doc":   {1, 0, 0},
			"beta doc":    {0.7, 0.7, 0},
			"gamma doc":   {0, 1, 0},
			"alpha query": {1, 0, 0},
		},
	}
	s := newIntegrationStore(t, "it_search", emb)

	if _, err := s.Insert(ctx, []document.Document{
		{Name: "a", Content: "alpha doc"},
		{Name: "b", Content: "beta doc"},
		{Name: "c", Content: "gamma doc"},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(ctx, "alpha query", WithLimit(3))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Document.Name != want {
			t.Errorf("result[%d] = %q, want %q", i, results[i].Document.Name, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score <= results[i].Score {
			t.Errorf("scores not descending: %v then %v", results[i-1].Score, results[i].Score)
		}
	}
}

func TestSearchHealsMissingTable(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_heal", nil)

	// No Create: the table does not exist. Search must degrade to an empty
	// result and create the table for subsequent calls.
	results, err := s.Search(ctx, "alpha query")
	if err != nil {
		t.Fatalf("Search on missing table: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}

	exists, err := s.TableExists(ctx)
	if err != nil {
		t.Fatalf("TableExists: %v", err)
	}
	if !exists {
		t.Fatal("search did not heal the missing table")
	}

	if _, err := s.Insert(ctx, []document.Document{{Name: "a", Content: "alpha doc"}}); err != nil {
		t.Fatalf("Insert after heal: %v", err)
	}
	results, err = s.Search(ctx, "alpha query")
	if err != nil {
		t.Fatalf("Search after heal: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestSearchUpdatesUsage(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_usage", nil)

	if _, err := s.Insert(ctx, []document.Document{{Name: "a", Content: "alpha doc"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for range 2 {
		if _, err := s.Search(ctx, "alpha query"); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}

	doc, err := s.GetDocumentByName(ctx, "a")
	if err != nil {
		t.Fatalf("GetDocumentByName: %v", err)
	}
	if got := document.AccessCount(doc.Usage); got != 2 {
		t.Errorf("access count = %d, want 2", got)
	}
	if doc.Usage[document.UsageLastAccessed] == nil {
		t.Error("last_accessed not stamped")
	}
	scores, ok := doc.Usage[document.UsageRelevanceScores].([]any)
	if !ok || len(scores) != 2 {
		t.Errorf("relevance_scores = %v, want two entries", doc.Usage[document.UsageRelevanceScores])
	}
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_filters", nil)

	if _, err := s.Insert(ctx, []document.Document{
		{Name: "a", Content: "alpha doc"},
		{Name: "b", Content: "beta doc"},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(ctx, "alpha query", WithFilter("name", "b"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.Name != "b" {
		t.Errorf("filtered results = %+v, want only b", results)
	}

	// Unknown filter keys are ignored, not errors.
	results, err = s.Search(ctx, "alpha query", WithFilter("no_such_column", 1))
	if err != nil {
		t.Fatalf("Search with unknown filter: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()

	// Different tenants resolve to different physical tables.
	s1 := newIntegrationStore(t, "it_tenant", nil, WithTenant(nil, intPtr(1)))
	s2 := newIntegrationStore(t, "it_tenant", nil, WithTenant(nil, intPtr(2)))
	if s1.Collection() == s2.Collection() {
		t.Fatalf("tenants share table %q", s1.Collection())
	}

	if _, err := s1.Insert(ctx, []document.Document{{Name: "mine", Content: "alpha doc"}}); err != nil {
		t.Fatalf("Insert tenant 1: %v", err)
	}
	if _, err := s2.Insert(ctx, []document.Document{{Name: "theirs", Content: "beta doc"}}); err != nil {
		t.Fatalf("Insert tenant 2: %v", err)
	}

	doc, err := s1.GetDocumentByName(ctx, "mine")
	if err != nil {
		t.Fatalf("GetDocumentByName: %v", err)
	}
	if doc.UserID == nil || *doc.UserID != 1 {
		t.Errorf("UserID = %v, want stamped tenant", doc.UserID)
	}
	if _, err := s1.GetDocumentByName(ctx, "theirs"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read err = %v, want ErrNotFound", err)
	}
}

func TestTenantPredicateOnSharedTable(t *testing.T) {
	ctx := context.Background()

	// Two stores over the same custom table, different users: the implicit
	// user_id predicate keeps reads, searches and deletes apart.
	if _, err := sharedDB.Pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS ai`); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	if _, err := sharedDB.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS ai.it_shared (
		id TEXT PRIMARY KEY, name TEXT, meta_data JSONB DEFAULT '{}'::jsonb,
		content TEXT, embedding vector(3), usage JSONB DEFAULT '{}'::jsonb,
		content_hash TEXT, user_id INTEGER, org_id INTEGER,
		created_at TIMESTAMPTZ DEFAULT now(), updated_at TIMESTAMPTZ DEFAULT now()
	)`); err != nil {
		t.Fatalf("creating shared table: %v", err)
	}

	s1 := newIntegrationStore(t, "", nil, WithExistingTable("it_shared"), WithTenant(nil, intPtr(1)))
	s2 := newIntegrationStore(t, "", nil, WithExistingTable("it_shared"), WithTenant(nil, intPtr(2)))

	if _, err := s1.Insert(ctx, []document.Document{{Name: "u1", Content: "alpha doc"}}); err != nil {
		t.Fatalf("Insert user 1: %v", err)
	}
	if _, err := s2.Insert(ctx, []document.Document{{Name: "u2", Content: "beta doc"}}); err != nil {
		t.Fatalf("Insert user 2: %v", err)
	}

	c1, err := s1.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if c1 != 1 {
		t.Errorf("tenant 1 Count = %d, want 1", c1)
	}

	results, err := s1.Search(ctx, "alpha query", WithLimit(10))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Document.UserID == nil || *r.Document.UserID != 1 {
			t.Errorf("search leaked row for user %v", r.Document.UserID)
		}
	}

	if err := s1.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	c2, err := s2.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if c2 != 1 {
		t.Errorf("tenant 1 Clear removed tenant 2 rows: count = %d", c2)
	}
}

func TestUpdateDocument(t *testing.T) {
	ctx := context.Background()
	emb := &testutil.StubEmbedder{
		Dims:     3,
		Fallback: []float32{0.5, 0.5, 0.5},
		Vectors: map[string][]float32{
			"old content": {1, 0, 0},
			"new content": {0, 0, 1},
		},
	}
	s := newIntegrationStore(t, "it_update", emb)

	if _, err := s.Insert(ctx, []document.Document{{ID: "doc1", Name: "n", Content: "old content"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.UpdateDocumentContent(ctx, "doc1", "new content"); err != nil {
		t.Fatalf("UpdateDocumentContent: %v", err)
	}

	doc, err := s.GetDocumentByID(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocumentByID: %v", err)
	}
	if doc.Content != "new content" {
		t.Errorf("Content = %q", doc.Content)
	}
	if doc.ContentHash != document.Hash("new content") {
		t.Errorf("ContentHash not recomputed")
	}
	if doc.Embedding[2] != 1 {
		t.Errorf("embedding not recomputed: %v", doc.Embedding)
	}

	if err := s.UpdateDocument(ctx, document.Document{Content: "no id"}); err == nil {
		t.Error("UpdateDocument without id succeeded")
	}
}

func TestDeleteOperations(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_delete", nil)

	if _, err := s.Insert(ctx, []document.Document{
		{ID: "d1", Name: "a", Content: "one"},
		{ID: "d2", Name: "b", Content: "two"},
		{ID: "d3", Name: "b", Content: "three"},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if ok, _ := s.IDExists(ctx, "d1"); ok {
		t.Error("d1 still exists")
	}

	// Name delete removes every row under the name.
	if err := s.DeleteDocumentByName(ctx, "b"); err != nil {
		t.Fatalf("DeleteDocumentByName: %v", err)
	}
	count, _ := s.Count(ctx)
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}

	if _, err := s.Insert(ctx, []document.Document{{Name: "x", Content: "four"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	count, _ = s.Count(ctx)
	if count != 0 {
		t.Errorf("Count after Clear = %d, want 0", count)
	}
	if exists, _ := s.TableExists(ctx); !exists {
		t.Error("Clear dropped the table")
	}

	if err := s.Drop(ctx); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if exists, _ := s.TableExists(ctx); exists {
		t.Error("table exists after Drop")
	}

	// The next write re-creates the table.
	if _, err := s.Insert(ctx, []document.Document{{Name: "y", Content: "five"}}); err != nil {
		t.Fatalf("Insert after Drop: %v", err)
	}
	if exists, _ := s.TableExists(ctx); !exists {
		t.Error("write did not re-create the dropped table")
	}
}

func TestListDocumentNames(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_names", nil)

	if _, err := s.Insert(ctx, []document.Document{
		{Name: "report_chunk_1", Content: "r1"},
		{Name: "report_chunk_2", Content: "r2"},
		{Name: "standalone", Content: "s"},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	groups, err := s.ListDocumentNames(ctx)
	if err != nil {
		t.Fatalf("ListDocumentNames: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %+v, want 2 entries", groups)
	}
	if groups[0].Name != "report" || groups[0].Chunks != 2 {
		t.Errorf("groups[0] = %+v, want report with 2 chunks", groups[0])
	}
	if groups[1].Name != "standalone" || groups[1].Chunks != 1 {
		t.Errorf("groups[1] = %+v", groups[1])
	}
}

func TestConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_concurrent", nil, WithWorkers(4), WithBatchSize(5))

	docs := make([]document.Document, 20)
	for i := range docs {
		docs[i] = document.Document{Name: fmt.Sprintf("c%d", i), Content: fmt.Sprintf("parallel %d", i)}
	}
	res, err := s.InsertConcurrent(ctx, docs)
	if err != nil {
		t.Fatalf("InsertConcurrent: %v", err)
	}
	if res.Succeeded != 20 || res.Failed != 0 {
		t.Errorf("result = %d/%d, want 20/0", res.Succeeded, res.Failed)
	}
	count, _ := s.Count(ctx)
	if count != 20 {
		t.Errorf("Count = %d, want 20", count)
	}
}

func TestOptimizeBuildsIndex(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t, "it_optimize", nil, WithIndex(IndexConfig{
		Kind:   IndexIVFFlat,
		Lists:  10,
		Probes: 5,
	}))

	if _, err := s.Insert(ctx, []document.Document{{Name: "a", Content: "alpha doc"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// Idempotent.
	if err := s.Optimize(ctx); err != nil {
		t.Fatalf("second Optimize: %v", err)
	}

	var indexName string
	err := sharedDB.Pool.QueryRow(ctx,
		`SELECT indexname FROM pg_indexes WHERE schemaname = 'ai' AND tablename = $1 AND indexname LIKE '%ivfflat%'`,
		s.Collection()).Scan(&indexName)
	if err != nil {
		t.Fatalf("index not found: %v", err)
	}
	if !strings.HasSuffix(indexName, "_ivfflat_index") {
		t.Errorf("indexName = %q", indexName)
	}

	// Search still works with the tuned transaction settings.
	if _, err := s.Search(ctx, "alpha query"); err != nil {
		t.Fatalf("Search with index tuning: %v", err)
	}
}

func TestIndexSizingSeesAllTenants(t *testing.T) {
	ctx := context.Background()

	// Dynamic IVFFlat sizing must count the whole physical table. On a
	// shared custom table the tenant-scoped Count sees only one user's
	// slice.
	if _, err := sharedDB.Pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS ai`); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	if _, err := sharedDB.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS ai.it_sizing (
		id TEXT PRIMARY KEY, name TEXT, meta_data JSONB DEFAULT '{}'::jsonb,
		content TEXT, embedding vector(3), usage JSONB DEFAULT '{}'::jsonb,
		content_hash TEXT, user_id INTEGER, org_id INTEGER,
		created_at TIMESTAMPTZ DEFAULT now(), updated_at TIMESTAMPTZ DEFAULT now()
	)`); err != nil {
		t.Fatalf("creating shared table: %v", err)
	}

	s1 := newIntegrationStore(t, "", nil,
		WithExistingTable("it_sizing"), WithTenant(nil, intPtr(1)),
		WithIndex(IndexConfig{Kind: IndexIVFFlat, DynamicLists: true}))
	s2 := newIntegrationStore(t, "", nil, WithExistingTable("it_sizing"), WithTenant(nil, intPtr(2)))

	if _, err := s1.Insert(ctx, []document.Document{
		{Name: "u1-a", Content: "alpha doc"},
		{Name: "u1-b", Content: "beta doc"},
	}); err != nil {
		t.Fatalf("Insert user 1: %v", err)
	}
	if _, err := s2.Insert(ctx, []document.Document{{Name: "u2-a", Content: "gamma doc"}}); err != nil {
		t.Fatalf("Insert user 2: %v", err)
	}

	c1, err := s1.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if c1 != 2 {
		t.Errorf("tenant 1 Count = %d, want 2", c1)
	}
	rows, err := s1.tableRows(ctx)
	if err != nil {
		t.Fatalf("tableRows: %v", err)
	}
	if rows != 3 {
		t.Errorf("tableRows = %d, want 3", rows)
	}

	if err := s1.Optimize(ctx); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	var indexName string
	err = sharedDB.Pool.QueryRow(ctx,
		`SELECT indexname FROM pg_indexes WHERE schemaname = 'ai' AND tablename = 'it_sizing' AND indexname LIKE '%ivfflat%'`).Scan(&indexName)
	if err != nil {
		t.Fatalf("index not found: %v", err)
	}
}

func TestCustomTableReconciliation(t *testing.T) {
	ctx := context.Background()

	// A pre-existing table missing the required columns gains them on
	// Create; writes then populate the intersection.
	if _, err := sharedDB.Pool.Exec(ctx,
		`CREATE SCHEMA IF NOT EXISTS ai`); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	if _, err := sharedDB.Pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS ai.it_legacy (name TEXT, content TEXT)`); err != nil {
		t.Fatalf("creating legacy table: %v", err)
	}

	s := newIntegrationStore(t, "", nil, WithExistingTable("it_legacy"))
	if err := s.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := s.Insert(ctx, []document.Document{{Name: "legacy", Content: "alpha doc"}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("insert failed: %v", res.Errors)
	}

	doc, err := s.GetDocumentByName(ctx, "legacy")
	if err != nil {
		t.Fatalf("GetDocumentByName: %v", err)
	}
	if doc.Content != "alpha doc" {
		t.Errorf("Content = %q", doc.Content)
	}
	if len(doc.Embedding) != 3 {
		t.Errorf("embedding missing on reconciled table: %v", doc.Embedding)
	}
}
