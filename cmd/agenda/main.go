package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tazhate/agendasync/config"
	"github.com/tazhate/agendasync/internal/api"
	"github.com/tazhate/agendasync/internal/bot"
	"github.com/tazhate/agendasync/internal/clients/caldav"
	"github.com/tazhate/agendasync/internal/clients/webcal"
	"github.com/tazhate/agendasync/internal/scheduler"
	"github.com/tazhate/agendasync/internal/service"
	"github.com/tazhate/agendasync/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage: %s", store.DatabaseType())

	fetcher := service.NewFeedFetcher(webcal.NewClient(cfg.MaxFeedBytes), caldav.NewClient(cfg.MaxFeedBytes))
	syncSvc := service.NewSyncService(store, fetcher, cfg.SyncWorkers)
	agendaSvc := service.NewAgendaService(store)

	srv := api.New(cfg, syncSvc, agendaSvc)
	sched := scheduler.New(cfg, syncSvc)

	var tgBot *bot.Bot
	if cfg.BotEnabled() {
		tgBot, err = bot.New(cfg, syncSvc, store)
		if err != nil {
			log.Fatalf("Failed to init bot: %v", err)
		}
		sched.SetNotifier(tgBot)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	if tgBot != nil {
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("agendasync started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	log.Println("agendasync stopped")
}
