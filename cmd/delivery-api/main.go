// README: Entry point; loads config, wires stores, engine, router, and serves HTTP + live channels.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/config"
	httptransport "github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/http"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/infra"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/dispatch"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/location"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/order"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/rider"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/modules/table"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/stream"
	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	sessions := auth.NewSessionStore(redisClient)
	tenants := auth.NewTenantStore(dbPool)
	gate := auth.NewGate(auth.NewJWTVerifier(cfg.Auth.JWTSecret), sessions, tenants)

	orderStore := order.NewStore(dbPool)
	riderStore := rider.NewStore(dbPool, redisClient)
	pingStore := location.NewStore(dbPool)
	tableStore := table.NewStore(dbPool)
	locationSvc := location.NewService(pingStore)

	router := stream.NewRouter(logger, stream.WithBufferSize(cfg.Stream.BufferSize))
	engine := dispatch.NewEngine(orderStore, riderStore, pingStore, tableStore, gate, router, logger)
	wsHandler := ws.NewHandler(gate, engine, router, logger, cfg.Stream.WriteTimeout)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Gate:     gate,
		Engine:   engine,
		Orders:   orderStore,
		Riders:   riderStore,
		Location: locationSvc,
		Stream:   router,
		WS:       wsHandler,
		Logger:   logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		router.Shutdown()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("delivery-api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}
