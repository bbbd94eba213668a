package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/ledgerlink/internal/anomaly"
	"github.com/smallbiznis/ledgerlink/internal/apply"
	"github.com/smallbiznis/ledgerlink/internal/backfill"
	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	"github.com/smallbiznis/ledgerlink/internal/connector"
	"github.com/smallbiznis/ledgerlink/internal/identity"
	"github.com/smallbiznis/ledgerlink/internal/installment"
	"github.com/smallbiznis/ledgerlink/internal/jobqueue"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	"github.com/smallbiznis/ledgerlink/internal/ledger"
	"github.com/smallbiznis/ledgerlink/internal/metering"
	"github.com/smallbiznis/ledgerlink/internal/observability"
	obsmiddleware "github.com/smallbiznis/ledgerlink/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
	obstracing "github.com/smallbiznis/ledgerlink/internal/observability/tracing"
	"github.com/smallbiznis/ledgerlink/internal/order"
	"github.com/smallbiznis/ledgerlink/internal/payment"
	"github.com/smallbiznis/ledgerlink/internal/rawevent"
	rawdomain "github.com/smallbiznis/ledgerlink/internal/rawevent/domain"
	"github.com/smallbiznis/ledgerlink/internal/reconciliation"
	recdomain "github.com/smallbiznis/ledgerlink/internal/reconciliation/domain"
	"github.com/smallbiznis/ledgerlink/internal/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	connector.Module,
	ledger.Module,
	identity.Module,
	order.Module,
	payment.Module,
	anomaly.Module,
	metering.Module,
	installment.Module,
	jobqueue.Module,
	rawevent.Module,
	apply.Module,
	reconciliation.Module,
	secrets.Module,
	backfill.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	rawSvc   rawdomain.Service
	reconSvc recdomain.Service
	jobSvc   jobdomain.Service
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	RawSvc   rawdomain.Service
	ReconSvc recdomain.Service
	JobSvc   jobdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		db:       p.DB,
		log:      p.Log.Named("http.server"),
		genID:    p.GenID,
		clock:    p.Clock,
		rawSvc:   p.RawSvc,
		reconSvc: p.ReconSvc,
		jobSvc:   p.JobSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Webhook ingestion --------
	v1.POST("/webhooks/:provider", s.HandleWebhook)

	// -------- Reconciliation --------
	v1.POST("/reconciliation/import", s.ImportBankTransactions)
	v1.GET("/reconciliation/transactions/:id/matches", s.ListTransactionMatches)
	v1.POST("/reconciliation/transactions/:id/match", s.ConfirmTransactionMatch)

	// -------- Dead letter operations --------
	v1.GET("/jobs/dead", s.ListDeadJobs)
	v1.POST("/jobs/:id/requeue", s.RequeueJob)

	// -------- Installment preview --------
	v1.POST("/installments/preview", s.PreviewInstallments)
}
