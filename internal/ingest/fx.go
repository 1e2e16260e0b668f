package ingest

import (
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/ingest/service"
	"github.com/smallbiznis/meseboard/internal/normalize"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest.service",
	fx.Provide(NewNormalizer),
	fx.Provide(service.NewService),
)

func NewNormalizer(cfg config.Config, rules *config.IngestConfigHolder, clk clock.Clock) *normalize.Normalizer {
	return normalize.New(rules, cfg.Location(), clk)
}
