package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
)

// runOptimize builds the configured ANN index over the collection.
func runOptimize() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Index.Kind == "" {
		fmt.Println("No index configured; set index.kind to ivfflat or hnsw in config.")
		return nil
	}
	if err := a.store.Optimize(ctx); err != nil {
		return fmt.Errorf("optimizing collection: %w", err)
	}
	fmt.Printf("Index ready on %s\n", a.store.Collection())
	return nil
}
