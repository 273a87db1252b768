package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Create ensures the schema, the vector extension and the collection table
// all exist. It is idempotent and safe to call before any operation; writes
// call it implicitly, searches call it as self-healing after a failure.
func (s *Store) Create(ctx context.Context) error {
	if err := s.provision(ctx); err != nil {
		return err
	}

	if s.customTable {
		return s.reconcileCustomTable(ctx)
	}

	if _, err := s.pool.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// provision creates the schema and the vector extension. A store-owned pool
// registers pgvector codecs on every connect, which fails while the
// extension is absent, so provisioning runs over a plain connection when the
// store holds a connection URL. A fresh database then self-enables on first
// write.
func (s *Store) provision(ctx context.Context) error {
	exec := s.pool.Exec
	if s.connURL != "" {
		conn, err := pgx.Connect(ctx, s.connURL)
		if err != nil {
			return fmt.Errorf("connect for provisioning: %w", err)
		}
		defer func() { _ = conn.Close(ctx) }()
		exec = conn.Exec
	}

	if _, err := exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize())); err != nil {
		return fmt.Errorf("create schema %q: %w", s.schema, err)
	}
	if _, err := exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return nil
}

// TableExists is a cheap existence probe used to decide whether to
// auto-create before a search.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, s.schema, s.table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table existence: %w", err)
	}
	return exists, nil
}

// ensureTable lazily creates the table exactly once per Store. Writes must
// call this before touching the table; a write cannot "return empty".
func (s *Store) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tableReady {
		return nil
	}
	if err := s.Create(ctx); err != nil {
		return err
	}
	s.tableReady = true
	return nil
}

// healTable re-creates the table after a failed read so the next call
// succeeds. Used by the search path only.
func (s *Store) healTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Create(ctx); err != nil {
		return err
	}
	s.tableReady = true
	return nil
}

// reconcileCustomTable appends the required columns to a caller-supplied
// table when missing, then loads the actual column set so writes and reads
// operate on the intersection.
func (s *Store) reconcileCustomTable(ctx context.Context) error {
	defs := requiredColumnDefs(s.dims)
	for _, col := range requiredColumns {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
			s.qualifiedTable(), pgx.Identifier{col}.Sanitize(), defs[col])
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("add required column %q: %w", col, err)
		}
	}
	return s.loadColumns(ctx)
}

// loadColumns introspects the physical column set of a custom table.
func (s *Store) loadColumns(ctx context.Context) error {
	const q = `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := s.pool.Query(ctx, q, s.schema, s.table)
	if err != nil {
		return fmt.Errorf("load columns for %s: %w", s.table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}

	s.columns = cols
	return nil
}
