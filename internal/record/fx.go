package record

import (
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/smallbiznis/meseboard/internal/record/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("record.repository",
	fx.Provide(repository.Provide),
	fx.Invoke(Migrate),
)

// Migrate creates the tables and natural-key indexes when auto migration is
// enabled. Production schemas are normally managed out of band.
func Migrate(cfg config.Config, db *gorm.DB, log *zap.Logger) error {
	if !cfg.DBAutoMigrate {
		return nil
	}
	log.Info("auto migrating record tables")
	return db.AutoMigrate(domain.Models()...)
}
