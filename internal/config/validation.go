package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for Go-idiomatic checking with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidDimensions indicates a non-positive embedder dimensionality.
	ErrInvalidDimensions = errors.New("invalid embedder dimensions")

	// ErrInvalidMetric indicates an unknown distance metric.
	ErrInvalidMetric = errors.New("invalid distance metric")

	// ErrInvalidIndexKind indicates an unknown ANN index kind.
	ErrInvalidIndexKind = errors.New("invalid index kind")

	// ErrInvalidBatchSize indicates a negative batch size.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("invalid worker count")
)

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

var validMetrics = map[string]bool{
	"cosine": true, "l2": true, "inner_product": true,
}

var validIndexKinds = map[string]bool{
	"": true, "ivfflat": true, "hnsw": true,
}

// Validate checks all configuration values, fail-fast.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	if c.EmbedderDimensions <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimensions, c.EmbedderDimensions)
	}
	if !validMetrics[c.Metric] {
		return fmt.Errorf("%w: %q", ErrInvalidMetric, c.Metric)
	}
	if !validIndexKinds[c.Index.Kind] {
		return fmt.Errorf("%w: %q", ErrInvalidIndexKind, c.Index.Kind)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	return nil
}
