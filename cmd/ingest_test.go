package cmd

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sreddy75/kr8-vector/internal/document"
)

func TestChunkDocumentNoSplit(t *testing.T) {
	doc := document.Document{Name: "report", Content: "short"}

	got := chunkDocument(doc, 0)
	if len(got) != 1 || got[0].Name != "report" {
		t.Fatalf("chunkDocument(size=0) = %+v, want document unchanged", got)
	}

	got = chunkDocument(doc, 100)
	if len(got) != 1 || got[0].Content != "short" {
		t.Fatalf("content within size must not split: %+v", got)
	}
}

func TestChunkDocumentSplits(t *testing.T) {
	para := strings.Repeat("x", 40)
	doc := document.Document{
		Name:    "report",
		Content: para + "\n\n" + para + "\n\n" + para,
	}

	got := chunkDocument(doc, 100)
	if len(got) < 2 {
		t.Fatalf("chunkDocument = %d chunks, want a split", len(got))
	}
	for i, c := range got {
		wantName := fmt.Sprintf("report_chunk_%d", i+1)
		if c.Name != wantName {
			t.Errorf("chunk %d name = %q, want %q", i, c.Name, wantName)
		}
		if len([]rune(c.Content)) > 100 {
			t.Errorf("chunk %d exceeds size: %d runes", i, len([]rune(c.Content)))
		}
		if c.ID != "" {
			t.Errorf("chunk %d carries the parent id", i)
		}
	}

	// Chunk names collapse back to the logical document.
	base, isChunk := document.LogicalName(got[0].Name)
	if base != "report" || !isChunk {
		t.Errorf("LogicalName(%q) = %q, %v", got[0].Name, base, isChunk)
	}
}

func TestChunkDocumentPrefersParagraphBoundary(t *testing.T) {
	doc := document.Document{
		Name:    "n",
		Content: "first paragraph\n\nsecond paragraph that continues for a while",
	}

	got := chunkDocument(doc, 30)
	if len(got) < 2 {
		t.Fatalf("chunkDocument = %d chunks, want at least 2", len(got))
	}
	if got[0].Content != "first paragraph" {
		t.Errorf("first chunk = %q, want the clean paragraph", got[0].Content)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("a  b\n c"); got != "a b c" {
		t.Errorf("snippet = %q, want whitespace collapsed", got)
	}
	long := strings.Repeat("w ", 200)
	got := snippet(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long snippet not truncated: %q", got)
	}
	if len(got) > snippetLength+3 {
		t.Errorf("snippet length = %d", len(got))
	}
}
