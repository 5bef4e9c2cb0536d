package repositories

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"opendut-carl/internal/domain/ports"
	"opendut-carl/internal/infrastructure/repositories/mem"
	"opendut-carl/internal/infrastructure/repositories/pg"
)

// RepositoryType represents the type of repository backend
type RepositoryType string

const (
	RepositoryTypeMemory     RepositoryType = "memory"
	RepositoryTypePostgreSQL RepositoryType = "postgresql"
)

// PersistenceOptions selects the backend of the resource store.
// With Enabled unset the store lives in memory only.
type PersistenceOptions struct {
	Enabled  bool                `yaml:"enabled" env:"CARL_PERSISTENCE_ENABLED"`
	Database pg.ConnectionConfig `yaml:"database"`
}

// Disabled returns options for an in-memory store
func Disabled() PersistenceOptions {
	return PersistenceOptions{}
}

// Enabled returns options for a database backed store
func Enabled(database pg.ConnectionConfig) PersistenceOptions {
	return PersistenceOptions{Enabled: true, Database: database}
}

// Type returns the backend type the options select
func (o PersistenceOptions) Type() RepositoryType {
	if o.Enabled {
		return RepositoryTypePostgreSQL
	}
	return RepositoryTypeMemory
}

// Validate checks the options
func (o PersistenceOptions) Validate() error {
	if o.Enabled && o.Database.URI == "" {
		return errors.New("persistence is enabled but no database url is configured")
	}
	return nil
}

// Connect creates the storage the options select
func Connect(ctx context.Context, opts PersistenceOptions, logger logr.Logger) (ports.Storage, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Type() {
	case RepositoryTypeMemory:
		logger.Info("persistence disabled, resources are kept in memory")
		return mem.NewStorage(), nil
	case RepositoryTypePostgreSQL:
		storage, err := pg.NewStorage(ctx, opts.Database, logger)
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, errors.Errorf("unsupported repository type: %s", opts.Type())
	}
}
