package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/commentgoat/internal/config"
)

// Store is a persistence backend for boolean flags.
type Store interface {
	// Load returns the value of key and whether it is present.
	Load(ctx context.Context, key string) (value bool, found bool, err error)

	// Save writes key.
	Save(ctx context.Context, key string, value bool) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// All returns every stored key.
	All(ctx context.Context) (map[string]bool, error)

	// Close releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Open creates the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.SettingsConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path, logger)
	case "mongodb":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("unsupported settings backend: %s", cfg.Backend)
	}
}
