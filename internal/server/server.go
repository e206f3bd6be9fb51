package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/catalyser/internal/config"
	converterdomain "github.com/smallbiznis/catalyser/internal/converter/domain"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	metalpricedomain "github.com/smallbiznis/catalyser/internal/metalprice/domain"
	"github.com/smallbiznis/catalyser/internal/observability"
	obslogger "github.com/smallbiznis/catalyser/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/catalyser/internal/observability/metrics"
	obstracing "github.com/smallbiznis/catalyser/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/catalyser/internal/pricing/domain"
	recoveryratedomain "github.com/smallbiznis/catalyser/internal/recoveryrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(debug bool, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           debug,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg.Debug(), httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
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
	engine          *gin.Engine
	cfg             config.Config
	pricingCfg      *config.PricingConfigHolder
	creditSvc       creditdomain.Service
	pricingSvc      pricingdomain.Service
	metalPriceSvc   metalpricedomain.Service
	recoveryRateSvc recoveryratedomain.Service
	converterSvc    converterdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	PricingCfg      *config.PricingConfigHolder
	CreditSvc       creditdomain.Service
	PricingSvc      pricingdomain.Service
	MetalPriceSvc   metalpricedomain.Service
	RecoveryRateSvc recoveryratedomain.Service
	ConverterSvc    converterdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		pricingCfg:      p.PricingCfg,
		creditSvc:       p.CreditSvc,
		pricingSvc:      p.PricingSvc,
		metalPriceSvc:   p.MetalPriceSvc,
		recoveryRateSvc: p.RecoveryRateSvc,
		converterSvc:    p.ConverterSvc,
	}
	svc.registerAPIRoutes()
	svc.registerFallback()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Credits --------
	users := api.Group("/users/:user_id")
	users.POST("/credits", s.OpenCreditAccount)
	users.GET("/credits", s.GetCreditBalance)
	users.POST("/credits/grants", s.GrantCredits)
	users.POST("/credits/debits", s.DebitFeature)
	users.GET("/credits/entries", s.ListCreditEntries)
	users.GET("/credits/reconcile", s.ReconcileCredits)

	// -------- Pricing --------
	users.POST("/converters/:converter_id/quote", s.QuoteConverter)
	users.GET("/pricing-profile", s.GetPricingProfile)
	users.PUT("/pricing-profile", s.SetPricingProfile)

	// -------- Reference data --------
	api.POST("/metal-prices", s.RecordMetalPrices)
	api.GET("/metal-prices/current", s.GetCurrentMetalPrices)
	api.GET("/recovery-rates", s.GetRecoveryRates)
	api.PUT("/recovery-rates", s.UpdateRecoveryRates)

	// -------- Converters --------
	api.GET("/converters", s.ListConverters)
	api.POST("/converters", s.CreateConverter)
	api.GET("/converters/:converter_id", s.GetConverter)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
