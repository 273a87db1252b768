package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/sreddy75/kr8-vector/internal/document"
)

// tenantSuffix appends the implicit user_id predicate for tenant-scoped
// stores. The returned fragment starts with " AND"; queries must already
// carry a WHERE clause.
func (s *Store) tenantSuffix(args []any) (string, []any) {
	if s.userID == nil || !s.hasColumn("user_id") {
		return "", args
	}
	args = append(args, *s.userID)
	return fmt.Sprintf(" AND user_id = $%d", len(args)), args
}

// Count returns the number of rows visible to this tenant.
func (s *Store) Count(ctx context.Context) (int64, error) {
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE true", s.qualifiedTable())
	suffix, args := s.tenantSuffix(nil)

	var count int64
	if err := s.pool.QueryRow(ctx, q+suffix, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// DocExists reports whether any stored row shares the document's content
// hash. Content identity, not identifier identity, defines "the same
// document" here.
func (s *Store) DocExists(ctx context.Context, doc document.Document) (bool, error) {
	return s.exists(ctx, "content_hash", document.Hash(doc.Content))
}

// NameExists reports whether a document with the exact name is stored.
func (s *Store) NameExists(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, "name", name)
}

// IDExists reports whether a document with the id is stored.
func (s *Store) IDExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "id", id)
}

func (s *Store) exists(ctx context.Context, column, value string) (bool, error) {
	if !s.hasColumn(column) {
		return false, nil
	}
	suffix, args := s.tenantSuffix([]any{value})
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1%s)",
		s.qualifiedTable(), column, suffix)

	var exists bool
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("existence check on %s: %w", column, err)
	}
	return exists, nil
}

// GetDocumentByID fetches one document by id, or ErrNotFound.
func (s *Store) GetDocumentByID(ctx context.Context, id string) (*document.Document, error) {
	docs, err := s.selectDocuments(ctx, "WHERE id = $1", []any{id}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return &docs[0], nil
}

// GetDocumentByName fetches one document by exact name, or ErrNotFound.
func (s *Store) GetDocumentByName(ctx context.Context, name string) (*document.Document, error) {
	docs, err := s.selectDocuments(ctx, "WHERE name = $1", []any{name}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("name %q: %w", name, ErrNotFound)
	}
	return &docs[0], nil
}

// GetAllDocuments returns every document visible to this tenant, oldest
// first.
func (s *Store) GetAllDocuments(ctx context.Context) ([]document.Document, error) {
	return s.selectDocuments(ctx, "WHERE true", nil, 0)
}

func (s *Store) selectDocuments(ctx context.Context, where string, args []any, limit int) ([]document.Document, error) {
	suffix, args := s.tenantSuffix(args)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s %s%s ORDER BY created_at",
		strings.Join(s.columns, ", "), s.qualifiedTable(), where, suffix)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	docs, _, err := s.scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	return docs, nil
}

// UpdateDocument re-embeds and overwrites the stored row for doc.ID. The
// document must carry an explicit id.
func (s *Store) UpdateDocument(ctx context.Context, doc document.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("update requires an explicit document id")
	}
	res, err := s.Upsert(ctx, []document.Document{doc})
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return res.Errors[0].Err
	}
	return nil
}

// UpdateDocumentContent replaces a stored document's content, recomputing
// its embedding and content hash.
func (s *Store) UpdateDocumentContent(ctx context.Context, id, content string) error {
	doc, err := s.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	doc.Content = content
	return s.UpdateDocument(ctx, *doc)
}

// DeleteDocument removes one document by id.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.deleteWhere(ctx, "id", id)
}

// DeleteDocumentByName removes every row stored under the exact name.
func (s *Store) DeleteDocumentByName(ctx context.Context, name string) error {
	return s.deleteWhere(ctx, "name", name)
}

func (s *Store) deleteWhere(ctx context.Context, column, value string) error {
	suffix, args := s.tenantSuffix([]any{value})
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = $1%s", s.qualifiedTable(), column, suffix)
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("delete by %s: %w", column, err)
	}
	return nil
}

// Clear deletes all rows scoped to this tenant without dropping the table.
func (s *Store) Clear(ctx context.Context) error {
	suffix, args := s.tenantSuffix(nil)
	q := fmt.Sprintf("DELETE FROM %s WHERE true%s", s.qualifiedTable(), suffix)
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Drop physically removes the collection table. The next write re-creates
// it.
func (s *Store) Drop(ctx context.Context) error {
	q := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.qualifiedTable())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}

	s.mu.Lock()
	s.tableReady = false
	s.mu.Unlock()
	return nil
}

// ListDocumentNames enumerates distinct logical document names, collapsing
// chunk and page suffixes into one grouped entry with a chunk count.
func (s *Store) ListDocumentNames(ctx context.Context) ([]document.NameGroup, error) {
	if !s.hasColumn("name") {
		return nil, nil
	}
	suffix, args := s.tenantSuffix(nil)
	q := fmt.Sprintf("SELECT DISTINCT name FROM %s WHERE name IS NOT NULL AND name <> ''%s",
		s.qualifiedTable(), suffix)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list document names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan document name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document names: %w", err)
	}

	return document.GroupNames(names), nil
}
