package main

//go:generate swag init -g main.go -d ./,../../internal/handler,../../internal/service,../../pkg -o ../../api/swagger

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "backoffice/api/swagger" // swagger docs
	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/events"
	"backoffice/internal/handler"
	"backoffice/internal/logger"
	"backoffice/internal/middleware"
	"backoffice/internal/scheduler"
	"backoffice/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

// @title           Contract Billing API
// @version         1.0
// @description     Service catalog, contracts, invoicing with ITBIS and payment allocation.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatal().Err(err).Msg("Invalid log configuration")
	}
	middleware.InitAuth(cfg.JWTSecret)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("Connected to database")

	priceCache, closeCache := app.NewPriceCache(ctx, cfg)
	defer closeCache()

	wsHub := websocket.NewHub()
	publishers := events.Multi{events.NewHubPublisher(wsHub)}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("AMQP unavailable, events will not be published to the broker")
		} else {
			defer amqpPublisher.Close()
			publishers = append(publishers, amqpPublisher)
		}
	}

	svcs := app.NewServices(cfg, db, priceCache, publishers)

	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret(), middleware.ReadRoles...)
	})

	api := router.Group("")
	handler.NewCatalogHandler(svcs.Catalog, svcs.Prices).RegisterRoutes(api)
	handler.NewContractHandler(svcs.Contracts).RegisterRoutes(api)
	handler.NewInvoiceHandler(svcs.Invoices).RegisterRoutes(api)
	handler.NewPaymentHandler(svcs.Payments).RegisterRoutes(api)
	handler.NewBillingRunHandler(svcs.BillingRun, svcs.Contracts).RegisterRoutes(api)
	handler.NewAuditHandler(svcs.Audit).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run()
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.SchedulerEnabled {
		sched, err := scheduler.New(scheduler.Config{
			BillingSpec: cfg.BillingCron,
			ExpirySpec:  cfg.ExpiryCron,
			JobTimeout:  30 * time.Minute,
		}, svcs.BillingRun, svcs.Contracts)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid scheduler configuration")
		}
		sched.Start()
		log.Info().Str("billing", cfg.BillingCron).Str("expiry", cfg.ExpiryCron).Msg("Scheduler started")

		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		wsHub.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}
