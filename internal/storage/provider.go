// Package storage opens the version store named by a connection URI. The URI
// scheme picks the backend: mongodb/mongodb+srv, postgres/postgresql, or memory.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/radar"
	"github.com/JakeFAU/version-radar/internal/storage/memory"
	mongostore "github.com/JakeFAU/version-radar/internal/storage/mongo"
	"github.com/JakeFAU/version-radar/internal/storage/postgres"
)

// Backend names a store implementation.
type Backend string

// Supported backends.
const (
	BackendMemory   Backend = "memory"
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
)

// Config selects and configures the version store.
type Config struct {
	URI      string
	Database string
	Table    string
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// BackendFor maps a connection URI to a backend. An empty URI means memory.
func BackendFor(uri string) (Backend, error) {
	if strings.TrimSpace(uri) == "" {
		return BackendMemory, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse store uri: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	default:
		return "", fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// Open connects the backend selected by cfg.URI and prepares its schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (radar.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := BackendFor(cfg.URI)
	if err != nil {
		return nil, err
	}

	var store radar.Store
	switch backend {
	case BackendMongo:
		logger.Info("Connecting to MongoDB...", zap.String("database", cfg.Database))
		store, err = mongostore.New(ctx, mongostore.Config{
			URI:        cfg.URI,
			Database:   cfg.Database,
			Collection: cfg.Table,
		})
	case BackendPostgres:
		logger.Info("Connecting to PostgreSQL...")
		store, err = postgres.New(ctx, postgres.Config{DSN: cfg.URI, Table: cfg.Table})
	default:
		logger.Warn("Using in-memory version store. Versions will not survive a restart.")
		return memory.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	if m, ok := store.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("migrate %s store: %w", backend, err)
		}
	}
	return store, nil
}
