package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/triad/auth"
	"github.com/wfunc/triad/broadcast"
	"github.com/wfunc/triad/config"
	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/matchmaking"
	"github.com/wfunc/triad/media"
	"github.com/wfunc/triad/monitor"
	"github.com/wfunc/triad/persistence"
	"github.com/wfunc/triad/rpc"
	"github.com/wfunc/triad/server"
	"github.com/wfunc/triad/services"
	"github.com/wfunc/triad/session"
	"github.com/wfunc/triad/timer"
	"github.com/wfunc/triad/view"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	store := openStore(cfg)
	defer store.Close()

	mon := monitor.NewMonitor("triad")
	mon.PublishExpvar()

	clock := game.NewTurnClock(cfg.Game.TurnBudget())
	engine := game.NewEngine(store, clock)
	resolver := newResolver(ctx, cfg)

	// 广播: 单实例直接走 hub，开启 relay 时跨实例转发
	hub := broadcast.NewHub(mon)
	var broadcaster broadcast.Broadcaster = hub
	if cfg.Broadcast.Relay {
		pg := cfg.Database.Postgres
		relay, err := broadcast.NewRelay(hub, persistence.DSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName), "")
		if err != nil {
			logger.Log.Fatalf("Failed to start broadcast relay: %v", err)
		}
		defer relay.Close()
		go relay.Run(ctx)
		broadcaster = relay
	}

	timers := timer.NewTimerManager()
	defer timers.Stop()

	mediator := &session.Mediator{
		Store:            store,
		Engine:           engine,
		Projector:        view.NewProjector(clock, resolver),
		Hub:              hub,
		Broadcaster:      broadcaster,
		Timers:           timers,
		Sessions:         session.NewManager(),
		Monitor:          mon,
		WatchdogInterval: cfg.Game.WatchdogInterval,
	}

	mm := matchmaking.NewService(store, matchmaking.WithMonitor(mon), matchmaking.WithMedia(resolver))
	players := services.NewPlayerService(store, mm)

	sweeper := &services.Sweeper{Store: store, Engine: engine, Broadcaster: broadcaster, Monitor: mon}
	if err := sweeper.Start(cfg.Game.SweepInterval); err != nil {
		logger.Log.Fatalf("Failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewMatchService(mm, players))
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, server.Options{
		Mediator:    mediator,
		Matchmaking: mm,
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Monitor:     mon,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
		errCh <- gameServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("Shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) persistence.Store {
	if cfg.Database.Driver == "memory" {
		logger.Log.Info("Using in-memory store.")
		return persistence.NewMemoryStore()
	}

	pg := cfg.Database.Postgres
	db, err := persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")
	return db
}

func newResolver(ctx context.Context, cfg *config.Config) media.Resolver {
	prefix := media.NewPrefixResolver(cfg.Media.BaseURL)
	s3cfg := cfg.Media.S3
	if s3cfg.Bucket == "" {
		return prefix
	}
	r, err := media.NewS3Resolver(ctx, media.S3Config{
		Bucket:          s3cfg.Bucket,
		Region:          s3cfg.Region,
		Endpoint:        s3cfg.Endpoint,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
		PresignTTL:      s3cfg.PresignTTL,
	}, prefix)
	if err != nil {
		logger.Log.Fatalf("Failed to configure S3 media: %v", err)
	}
	return r
}
