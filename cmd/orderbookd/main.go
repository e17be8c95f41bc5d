package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderbookd/params"
	"orderbookd/pkg/api"
	"orderbookd/pkg/engine"
	"orderbookd/pkg/feed"
	"orderbookd/pkg/recovery"
	"orderbookd/pkg/service"
	"orderbookd/pkg/snapshot"
	"orderbookd/pkg/storage"
	"orderbookd/pkg/util"
	"orderbookd/pkg/wal"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Durability layer ----
	w, err := wal.Open(cfg.WALPath, cfg.FsyncEveryN, logger)
	if err != nil {
		sugar.Fatalw("wal open failed", "path", cfg.WALPath, "err", err)
	}

	store, err := storage.NewPebbleStore(cfg.SnapshotDBPath)
	if err != nil {
		sugar.Fatalw("snapshot store open failed", "path", cfg.SnapshotDBPath, "err", err)
	}

	// ---- Trade feed (optional) ----
	var publisher feed.Publisher = feed.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = feed.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTradeTopic)
		sugar.Infow("kafka trade feed enabled",
			"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTradeTopic)
	}

	// ---- Engine + service ----
	eng := engine.New()
	svc := service.NewOrderService(eng, w, store, publisher, logger)
	snapMgr := snapshot.NewManager(store, cfg.SnapshotInterval, cfg.SnapshotRetain, svc.CaptureState, logger)

	// ---- Recovery: must complete before accepting traffic ----
	coordinator := recovery.NewCoordinator(w, snapMgr, eng, logger)
	stats, err := coordinator.Run()
	if err != nil {
		sugar.Fatalw("recovery failed", "err", err)
	}
	sugar.Infow("engine ready",
		"snapshot_seq", stats.SnapshotSeq,
		"replayed", stats.Replayed,
		"skipped", stats.Skipped,
		"last_seq", stats.LastSeq,
		"symbols", eng.Symbols())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapMgr.Start(ctx)

	server := api.NewServer(svc, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(addr)
	}()

	select {
	case <-ctx.Done():
		sugar.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("api server failed", "err", err)
		}
	}

	// Drain HTTP, stop the snapshot timer, then take one final snapshot
	// and force the WAL to disk so the next start replays almost nothing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api shutdown failed", "err", err)
	}

	snapMgr.Stop()
	if err := snapMgr.CaptureNow(); err != nil {
		sugar.Warnw("final snapshot failed", "err", err)
	}
	if err := w.Sync(); err != nil {
		sugar.Warnw("final wal sync failed", "err", err)
	}
	if err := w.Close(); err != nil {
		sugar.Warnw("wal close failed", "err", err)
	}
	if err := publisher.Close(); err != nil {
		sugar.Warnw("feed close failed", "err", err)
	}
	if err := store.Close(); err != nil {
		sugar.Warnw("store close failed", "err", err)
	}
	sugar.Info("orderbookd stopped")
}
