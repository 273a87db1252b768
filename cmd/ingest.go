package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sreddy75/kr8-vector/internal/document"
	"github.com/sreddy75/kr8-vector/internal/vectorstore"
)

// runIngest embeds and stores documents from the given files (or stdin
// with "-"). Each file becomes one document named after its base name;
// with -chunk-size, long files split into "name_chunk_N" documents.
func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	upsert := fs.Bool("upsert", false, "overwrite documents that share an id")
	concurrent := fs.Bool("concurrent", false, "ingest batches in parallel (requires workers > 0 in config)")
	chunkSize := fs.Int("chunk-size", 0, "split files into chunks of at most this many characters (0 = no splitting)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("ingest requires at least one file argument (use - for stdin)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Create(ctx); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	var docs []document.Document
	for _, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			return err
		}
		docs = append(docs, chunkDocument(doc, *chunkSize)...)
	}

	res, err := ingestDocuments(ctx, a, docs, *upsert, *concurrent)
	if err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}

	fmt.Printf("Job %s: %d stored, %d failed\n", res.JobID, res.Succeeded, res.Failed)
	for _, ie := range res.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", ie.Name, ie.Err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", res.Failed, len(docs))
	}
	return nil
}

func readDocument(path string) (document.Document, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return document.Document{}, fmt.Errorf("reading stdin: %w", err)
		}
		return document.Document{Name: "stdin", Content: string(data)}, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied CLI path
	if err != nil {
		return document.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return document.Document{
		Name:     filepath.Base(path),
		Content:  string(data),
		MetaData: map[string]any{"source": path},
	}, nil
}

// chunkDocument splits a document into size-bounded chunks named with the
// "_chunk_N" convention, preferring paragraph boundaries. A size of zero or
// content that fits returns the document unchanged.
func chunkDocument(doc document.Document, size int) []document.Document {
	runes := []rune(doc.Content)
	if size <= 0 || len(runes) <= size {
		return []document.Document{doc}
	}

	var chunks []document.Document
	n := 1
	for len(runes) > 0 {
		end := min(size, len(runes))
		if end < len(runes) {
			if cut := strings.LastIndex(string(runes[:end]), "\n\n"); cut > 0 {
				end = len([]rune(string(runes[:end])[:cut]))
			}
		}
		chunk := doc
		chunk.ID = ""
		chunk.Name = fmt.Sprintf("%s_chunk_%d", doc.Name, n)
		chunk.Content = strings.TrimSpace(string(runes[:end]))
		if chunk.Content != "" {
			chunks = append(chunks, chunk)
			n++
		}
		runes = runes[end:]
	}
	return chunks
}

func ingestDocuments(ctx context.Context, a *app, docs []document.Document, upsert, concurrent bool) (*vectorstore.IngestResult, error) {
	switch {
	case upsert && concurrent:
		return a.store.UpsertConcurrent(ctx, docs)
	case upsert:
		return a.store.Upsert(ctx, docs)
	case concurrent:
		return a.store.InsertConcurrent(ctx, docs)
	default:
		return a.store.Insert(ctx, docs)
	}
}
