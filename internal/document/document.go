// Package document defines the value type stored and retrieved by the
// vector store, together with the content-cleaning, hashing and
// chunk-naming rules every write path must agree on.
package document

import (
	"crypto/md5" // #nosec G501 -- content fingerprint for dedup, not a security boundary
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Usage keys tracked per document. Usage is an open JSON mapping; these are
// the keys the store itself maintains.
const (
	UsageAccessCount     = "access_count"
	UsageLastAccessed    = "last_accessed"
	UsageCreatedAt       = "created_at"
	UsageUpdatedAt       = "updated_at"
	UsageRelevanceScores = "relevance_scores"
	UsageTokenCount      = "token_count"
)

// Document is the unit of storage and retrieval.
//
// ID is optional at write time; when absent it defaults to the content hash,
// collapsing content-identical documents onto a single row. UserID and OrgID
// are tenant discriminators; when set on the owning store they scope every
// read, write and delete.
type Document struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Content     string         `json:"content"`
	MetaData    map[string]any `json:"meta_data"`
	Embedding   []float32      `json:"embedding,omitempty"`
	Usage       map[string]any `json:"usage,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	UserID      *int           `json:"user_id,omitempty"`
	OrgID       *int           `json:"org_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitzero"`
	UpdatedAt   time.Time      `json:"updated_at,omitzero"`
}

// CleanContent replaces NUL bytes with the Unicode replacement character.
// PostgreSQL text columns cannot store NUL, and the hash must be computed
// over exactly what gets stored.
func CleanContent(s string) string {
	return strings.ReplaceAll(s, "\x00", "�")
}

// Hash returns the MD5 hex digest of the cleaned content. It is
// deterministic over cleaned content regardless of call site, and doubles
// as the fallback document id.
func Hash(content string) string {
	sum := md5.Sum([]byte(CleanContent(content))) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// Prepare cleans the document content in place, computes the content hash,
// and fills a missing ID from the hash. It returns the cleaned content for
// convenience.
func (d *Document) Prepare() string {
	d.Content = CleanContent(d.Content)
	d.ContentHash = Hash(d.Content)
	if d.ID == "" {
		d.ID = d.ContentHash
	}
	return d.Content
}

// RecordAccess increments the access counter, stamps last_accessed, and
// appends the relevance score for this retrieval. Usage is created lazily.
func (d *Document) RecordAccess(score float64, now time.Time) {
	if d.Usage == nil {
		d.Usage = make(map[string]any)
	}
	d.Usage[UsageAccessCount] = AccessCount(d.Usage) + 1
	d.Usage[UsageLastAccessed] = now.UTC().Format(time.RFC3339)

	scores := relevanceScores(d.Usage)
	d.Usage[UsageRelevanceScores] = append(scores, score)
}

// AccessCount reads the access counter out of a usage mapping, tolerating
// the numeric types JSON round-trips produce.
func AccessCount(usage map[string]any) int {
	switch v := usage[UsageAccessCount].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// relevanceScores normalizes the stored score list, which arrives as
// []any after a JSON round-trip.
func relevanceScores(usage map[string]any) []float64 {
	switch v := usage[UsageRelevanceScores].(type) {
	case []float64:
		return v
	case []any:
		scores := make([]float64, 0, len(v))
		for _, s := range v {
			if f, ok := s.(float64); ok {
				scores = append(scores, f)
			}
		}
		return scores
	default:
		return nil
	}
}

// chunkSuffix matches the multi-part naming convention readers use when
// splitting one logical document: "report_chunk_3", "manual_page_12".
var chunkSuffix = regexp.MustCompile(`_(chunk|page)_\d+$`)

// LogicalName strips a chunk/page suffix from a stored document name.
// The second return reports whether a suffix was present.
func LogicalName(name string) (string, bool) {
	base := chunkSuffix.ReplaceAllString(name, "")
	return base, base != name
}

// NameGroup is one logical document as shown to users: a base name plus the
// number of physical chunks stored under it.
type NameGroup struct {
	Name   string
	Chunks int
}

// GroupNames collapses physical document names into logical groups, so UIs
// show one row per document rather than per chunk. Output is sorted by name.
func GroupNames(names []string) []NameGroup {
	counts := make(map[string]int)
	for _, n := range names {
		base, _ := LogicalName(n)
		counts[base]++
	}

	groups := make([]NameGroup, 0, len(counts))
	for name, chunks := range counts {
		groups = append(groups, NameGroup{Name: name, Chunks: chunks})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
