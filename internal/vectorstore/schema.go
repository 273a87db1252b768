package vectorstore

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Physical column layout for store-managed tables. A caller may point the
// store at a custom pre-existing table instead, in which case only the
// required columns are guaranteed (appended if missing) and writes populate
// the intersection of document fields and whatever that table defines.
var (
	baseColumns = []string{
		"id", "name", "meta_data", "content", "embedding",
		"usage", "content_hash", "user_id", "org_id",
		"created_at", "updated_at",
	}

	requiredColumns = []string{"id", "embedding", "created_at", "updated_at"}
)

// requiredColumnDefs maps required columns to their DDL, used when
// reconciling a custom table.
func requiredColumnDefs(dims int) map[string]string {
	return map[string]string{
		"id":         "TEXT",
		"embedding":  fmt.Sprintf("vector(%d)", dims),
		"created_at": "TIMESTAMPTZ DEFAULT now()",
		"updated_at": "TIMESTAMPTZ DEFAULT now()",
	}
}

// CollectionName derives the physical table name from the tenant identity.
// Parts appear in fixed order (org, user, base, project), each included
// only when present, joined by underscores. Two stores configured with the
// same identifiers always resolve to the same table.
func CollectionName(base string, orgID, userID *int, project string) string {
	parts := make([]string, 0, 4)
	if orgID != nil {
		parts = append(parts, fmt.Sprintf("org_%d", *orgID))
	}
	if userID != nil {
		parts = append(parts, fmt.Sprintf("user_%d", *userID))
	}
	if base != "" {
		parts = append(parts, base)
	}
	if project != "" {
		parts = append(parts, project)
	}
	return strings.Join(parts, "_")
}

// qualifiedTable returns the quoted schema-qualified table identifier.
func (s *Store) qualifiedTable() string {
	return pgx.Identifier{s.schema, s.table}.Sanitize()
}

// createTableSQL builds the DDL for a store-managed table.
func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT,
	meta_data JSONB DEFAULT '{}'::jsonb,
	content TEXT,
	embedding vector(%d),
	usage JSONB DEFAULT '{}'::jsonb,
	content_hash TEXT,
	user_id INTEGER,
	org_id INTEGER,
	created_at TIMESTAMPTZ DEFAULT now(),
	updated_at TIMESTAMPTZ DEFAULT now()
)`, s.qualifiedTable(), s.dims)
}

// hasColumn reports whether the resolved physical table defines the column.
func (s *Store) hasColumn(name string) bool {
	for _, c := range s.columns {
		if c == name {
			return true
		}
	}
	return false
}
