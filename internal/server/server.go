package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/index"
	"github.com/harvestlabs/grantscout/internal/runtime"
	"github.com/harvestlabs/grantscout/internal/store"
	"github.com/harvestlabs/grantscout/internal/telemetry"
)

// Run wires the HTTP API and blocks serving it
func Run(cfg *config.Config, addr string) error {
	e := newEcho()

	_ = store.Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	st, err := store.New(cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	var idx *index.Index
	if cfg.Storage.IndexDir != "" {
		idx, err = index.Open(cfg.Storage.IndexDir)
	} else {
		idx, err = index.NewMemIndex()
	}
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	tel := telemetry.NewTelemetry(cfg.Telemetry, nil)
	engineLogger := log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	newRunner := DefaultRunnerFactory(cfg, tel, rdb, engineLogger)

	api := e.Group("/api")
	api.GET("/telemetry/cost", func(c echo.Context) error {
		return c.JSON(http.StatusOK, tel.GetCostSummary())
	})

	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	rh := &ResearchHandler{
		Cfg:       cfg,
		Secret:    secret,
		Store:     st,
		Index:     idx,
		NewRunner: newRunner,
		Logger:    log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
	rh.Register(api.Group("/research"))

	protected := runtime.EchoAuthMiddleware(secret)
	reports := &ReportsHandler{Store: st, Index: idx}
	reports.Register(api.Group("/reports", protected))
	monitors := &MonitorsHandler{Store: st}
	monitors.Register(api.Group("/monitors", protected))

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{
			Store:     st,
			Index:     idx,
			NewRunner: newRunner,
			Interval:  cfg.Scheduler.Interval,
			Stop:      make(chan struct{}),
		}
		if rdb != nil {
			sched.Locks = redisLocker{client: rdb}
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	return e.Start(addr)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}
