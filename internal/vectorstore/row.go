package vectorstore

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/sreddy75/kr8-vector/internal/document"
)

// scanDocuments converts result rows into Documents by field name, so the
// same scan path serves store-managed tables and custom tables with partial
// column sets. A trailing "distance" column, when present, is returned
// alongside each document.
func (s *Store) scanDocuments(rows pgx.Rows) ([]document.Document, []float64, error) {
	fields := rows.FieldDescriptions()

	var docs []document.Document
	var distances []float64
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}

		var doc document.Document
		distance := 0.0
		for i, fd := range fields {
			v := values[i]
			if v == nil {
				continue
			}
			switch fd.Name {
			case "id":
				doc.ID = asString(v)
			case "name":
				doc.Name = asString(v)
			case "content":
				doc.Content = asString(v)
			case "content_hash":
				doc.ContentHash = asString(v)
			case "meta_data":
				doc.MetaData = asMap(v)
			case "usage":
				doc.Usage = asMap(v)
			case "embedding":
				doc.Embedding = asVector(v)
			case "user_id":
				doc.UserID = asIntPtr(v)
			case "org_id":
				doc.OrgID = asIntPtr(v)
			case "created_at":
				doc.CreatedAt = asTime(v)
			case "updated_at":
				doc.UpdatedAt = asTime(v)
			case "distance":
				distance = asFloat(v)
			}
		}
		docs = append(docs, doc)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return docs, distances, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func asIntPtr(v any) *int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	default:
		return nil
	}
	return &n
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// asMap decodes a jsonb value, which pgx surfaces either as a decoded map
// or as raw bytes depending on codec registration.
func asMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(t, &m); err == nil {
			return m
		}
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil {
			return m
		}
	}
	return nil
}

// asVector decodes an embedding column; with registered codecs pgx hands
// back a pgvector.Vector, otherwise the textual "[f1,f2,...]" form.
func asVector(v any) []float32 {
	switch t := v.(type) {
	case pgvector.Vector:
		return t.Slice()
	case *pgvector.Vector:
		if t != nil {
			return t.Slice()
		}
	case string:
		return parseVectorText(t)
	case []byte:
		return parseVectorText(string(t))
	}
	return nil
}

func parseVectorText(s string) []float32 {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}
