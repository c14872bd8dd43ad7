package credentials

import (
	"context"
	"fmt"

	"github.com/brizzai/blogctl/internal/config"
	"github.com/brizzai/blogctl/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// StoreParams holds the parameters for creating the configured Store
type StoreParams struct {
	fx.In

	Config    *config.Config
	Lifecycle fx.Lifecycle
}

// NewStore builds the Store selected by credentials.backend
func NewStore(params StoreParams) (Store, error) {
	cfg := params.Config.Credentials

	switch cfg.Backend {
	case config.CredentialsBackendMemory:
		return NewMemoryStore(), nil
	case config.CredentialsBackendFile, "":
		logger.Debug("using file credential store", zap.String("path", cfg.Path))
		return NewFileStore(cfg.Path), nil
	case config.CredentialsBackendRedis:
		client, err := NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		params.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		logger.Debug("using redis credential store", zap.String("prefix", cfg.KeyPrefix))
		return NewRedisStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported credentials backend: %s", cfg.Backend)
	}
}

// Module provides the credential store
var Module = fx.Module("credentials",
	fx.Provide(NewStore),
)
