package dashboard

import (
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/service"
	"github.com/smallbiznis/meseboard/internal/dashboard/viewstate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(service.NewService),
	fx.Provide(NewViewStore),
)

func NewViewStore(svc domain.Service, cfg config.Config, log *zap.Logger) *viewstate.Store {
	return viewstate.NewStore(svc, cfg.Dashboard.ViewSessionTTL, cfg.Dashboard.DetailLimit, log)
}
