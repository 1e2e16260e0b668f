package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/viewstate"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	maintenancedomain "github.com/smallbiznis/meseboard/internal/maintenance/domain"
	"github.com/smallbiznis/meseboard/internal/observability"
	obsmiddleware "github.com/smallbiznis/meseboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meseboard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/meseboard/internal/observability/tracing"
	"github.com/smallbiznis/meseboard/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	clock          clock.Clock
	log            *zap.Logger
	ingestSvc      ingestdomain.Service
	dashboardSvc   dashboarddomain.Service
	maintenanceSvc maintenancedomain.Service
	views          *viewstate.Store
	obsMetrics     *obsmetrics.Metrics
	uploadLimiter  uploadThrottle
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Clock          clock.Clock
	Log            *zap.Logger
	IngestSvc      ingestdomain.Service
	DashboardSvc   dashboarddomain.Service
	MaintenanceSvc maintenancedomain.Service
	Views          *viewstate.Store
	ObsMetrics     *obsmetrics.Metrics      `optional:"true"`
	UploadLimiter  *ratelimit.UploadLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		clock:          clk,
		log:            log.Named("http.server"),
		ingestSvc:      p.IngestSvc,
		dashboardSvc:   p.DashboardSvc,
		maintenanceSvc: p.MaintenanceSvc,
		views:          p.Views,
		obsMetrics:     p.ObsMetrics,
	}
	if p.UploadLimiter != nil {
		svc.uploadLimiter = p.UploadLimiter
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Uploads --------
	api.POST("/uploads/:kind", s.UploadRateLimit(), s.UploadFile)

	// -------- Dashboard --------
	dashboard := api.Group("/dashboard/:year")
	{
		dashboard.GET("", s.GetYearDashboard)
		dashboard.GET("/filters", s.GetFilterOptions)
		dashboard.GET("/trend", s.GetTrendView)
		dashboard.GET("/amount", s.GetAmountView)
		dashboard.GET("/faults", s.GetFaultView)
		dashboard.GET("/departments", s.GetDepartmentView)
		dashboard.GET("/customers", s.GetCustomerView)
		dashboard.GET("/shares", s.GetShareView)
		dashboard.GET("/details", s.GetDetails)
		dashboard.GET("/details.xlsx", s.ExportDetails)
		dashboard.GET("/report.pdf", s.ExportReport)
	}

	// -------- Cycle analysis --------
	analysis := api.Group("/analysis")
	{
		analysis.GET("/months", s.ListStatMonths)
		analysis.GET("/months/:month", s.GetMonthSummary)
		analysis.GET("/trend", s.GetComponentTrend)
		analysis.GET("/tickets/:serial", s.GetTicket)
	}

	// -------- View sessions --------
	api.POST("/views", s.CreateView)
	api.GET("/views/:id", s.GetView)
	api.DELETE("/views/:id", s.CloseView)
	api.POST("/views/:id/actions", s.DispatchViewAction)

	// -------- Maintenance --------
	maintenance := api.Group("/maintenance")
	{
		maintenance.POST("/truncate", s.TruncateTable)
		maintenance.POST("/cycle-stats/delete-month", s.DeleteCycleMonth)
		maintenance.POST("/cleanup-duplicates", s.CleanupDuplicates)
	}
}
