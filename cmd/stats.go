package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
)

// runStats prints the collection's row count and its logical document
// names with chunk counts.
func runStats() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	exists, err := a.store.TableExists(ctx)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		fmt.Printf("Collection %s does not exist yet.\n", a.store.Collection())
		return nil
	}

	count, err := a.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	fmt.Printf("Collection: %s\n", a.store.Collection())
	fmt.Printf("Rows: %d\n", count)

	groups, err := a.store.ListDocumentNames(ctx)
	if err != nil {
		return fmt.Errorf("listing document names: %w", err)
	}
	if len(groups) > 0 {
		fmt.Println("Documents:")
		for _, g := range groups {
			if g.Chunks > 1 {
				fmt.Printf("  %s (%d chunks)\n", g.Name, g.Chunks)
			} else {
				fmt.Printf("  %s\n", g.Name)
			}
		}
	}
	return nil
}
