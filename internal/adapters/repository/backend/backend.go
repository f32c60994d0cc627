// Package backend opens the configured repository.Store.
package backend

import (
	"context"

	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/adapters/repository/dynamo"
	"github.com/okian/cfpboard/internal/adapters/repository/postgres"
	"github.com/okian/cfpboard/internal/config"
)

// ErrUnknownStore is returned for a store name with no backend.
var ErrUnknownStore = errors.New("unknown store")

// Open selects the persistence backend named by cfg.Store. Postgres
// migrations are applied before it returns.
func Open(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StorePostgres:
		st, err := postgres.Open(ctx, postgres.Config{
			Host:         cfg.PostgresHost,
			Port:         cfg.PostgresPort,
			User:         cfg.PostgresUser,
			Password:     cfg.PostgresPassword,
			Name:         cfg.PostgresDB,
			DisableTLS:   cfg.PostgresSSLMode == "disable",
			MaxOpenConns: cfg.PostgresMaxOpenConns,
		})
		if err != nil {
			return nil, errors.Wrap(err, "postgres store")
		}
		return st, nil
	case config.StoreDynamoDB:
		st, err := dynamo.Open(ctx, dynamo.Config{
			Region:      cfg.DynamoDBRegion,
			Endpoint:    cfg.DynamoDBEndpoint,
			TablePrefix: cfg.DynamoDBTablePrefix,
		})
		if err != nil {
			return nil, errors.Wrap(err, "dynamodb store")
		}
		return st, nil
	default:
		return nil, errors.Wrapf(ErrUnknownStore, "%q", cfg.Store)
	}
}
