package cmd

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sreddy75/kr8-vector/internal/vectorstore"
)

const snippetLength = 160

// runSearch embeds the query and prints the most similar documents.
func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", vectorstore.DefaultSearchLimit, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search requires a query")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.store.Search(ctx, query, vectorstore.WithLimit(*limit))
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. %s (score %.4f)\n", i+1, displayName(r), r.Score)
		fmt.Printf("   %s\n", snippet(r.Document.Content))
	}
	return nil
}

func displayName(r vectorstore.Result) string {
	if r.Document.Name != "" {
		return r.Document.Name
	}
	return r.Document.ID
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > snippetLength {
		return content[:snippetLength] + "..."
	}
	return content
}
