package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meseboard/internal/archive"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/dashboard"
	"github.com/smallbiznis/meseboard/internal/ingest"
	"github.com/smallbiznis/meseboard/internal/maintenance"
	"github.com/smallbiznis/meseboard/internal/observability"
	"github.com/smallbiznis/meseboard/internal/ratelimit"
	"github.com/smallbiznis/meseboard/internal/record"
	"github.com/smallbiznis/meseboard/internal/server"
	"github.com/smallbiznis/meseboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	fx.New(options()...).Run()
}

func options() []fx.Option {
	return []fx.Option{
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional Domains
		record.Module,
		archive.Module,
		ingest.Module,
		dashboard.Module,
		maintenance.Module,
		ratelimit.Module,

		server.Module,
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
