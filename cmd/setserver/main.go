// Package main provides the Set Arena server binary: the session engine,
// the websocket gateway, and the optional NATS bridge.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/setarena/setarena/internal/config"
	"github.com/setarena/setarena/internal/events"
	"github.com/setarena/setarena/internal/game/card"
	"github.com/setarena/setarena/internal/game/session"
	"github.com/setarena/setarena/internal/gateway"
	"github.com/setarena/setarena/internal/observability"
	"github.com/setarena/setarena/internal/server"
	"github.com/setarena/setarena/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	start := time.Now()
	ctx := context.Background()

	// Bus selection: in-process by default, NATS when configured so
	// several gateway processes can share the traffic.
	var bus events.Bus
	var natsBus *transport.NATSBus
	if cfg.NATS.URL != "" {
		natsBus, err = transport.Connect(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatal("connecting to NATS", zap.Error(err))
		}
		bus = natsBus
		logger.Info("using NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		bus = events.NewLocalBus()
		logger.Info("using in-process event bus")
	}

	settings := session.Settings{
		GoalScore:          cfg.Game.GoalScore,
		PlayerTimeout:      cfg.Game.PlayerTimeout,
		MoreCardsThreshold: cfg.Game.MoreCardsThreshold,
		EndGameThreshold:   cfg.Game.EndGameThreshold,
		RestartThreshold:   cfg.Game.RestartThreshold,
	}

	registry := session.NewRegistry(settings, cfg.Game.GCGracePeriod, bus, card.NewCryptoSource(), logger)

	router := session.NewRouter(registry, logger)
	detachRouter, err := router.Attach(bus)
	if err != nil {
		logger.Fatal("attaching command router", zap.Error(err))
	}
	defer detachRouter()

	// The default session exists for the process lifetime and is never
	// garbage collected.
	lobby := registry.Create()
	logger.Info("default session ready", zap.Int("session_id", lobby.ID()))

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("gateway", gateway.NewServer(cfg.Gateway, bus, logger))

	gcDone := make(chan struct{})
	lifecycle.Add("session-gc", &server.FuncService{
		StartFn: func() error {
			stop := registry.StartGC(cfg.Game.GCInterval)
			<-gcDone
			stop()
			return nil
		},
		StopFn: func() { close(gcDone) },
	})

	if natsBus != nil {
		natsDone := make(chan struct{})
		lifecycle.Add("nats", &server.FuncService{
			StartFn: func() error {
				<-natsDone
				return nil
			},
			StopFn: func() {
				close(natsDone)
				natsBus.Close()
			},
		})
	}

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("gateway_addr", cfg.Gateway.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
