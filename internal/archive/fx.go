package archive

import (
	"context"

	"github.com/smallbiznis/meseboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("archive",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the configured store. A store that cannot be built is
// logged and replaced by the disabled store so uploads keep working.
func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Store {
	if !cfg.Archive.Enabled {
		log.Info("archive disabled")
		return Disabled()
	}

	store, err := NewGCSStore(context.Background(), GCSConfig{
		Bucket:      cfg.Archive.Bucket,
		ProjectID:   cfg.Archive.ProjectID,
		Credentials: cfg.Archive.CredentialsFile,
		Endpoint:    cfg.Archive.EmulatorHost,
	}, log)
	if err != nil {
		log.Warn("archive unavailable, uploads will not be archived", zap.Error(err))
		return Disabled()
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store
}
