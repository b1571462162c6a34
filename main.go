package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gametopup/auth"
	"gametopup/bot"
	"gametopup/cleaner"
	"gametopup/config"
	"gametopup/database"
	"gametopup/logging"
	"gametopup/service"
	"gametopup/session"
)

const draftTTL = 15 * time.Minute

func main() {
	log := logging.New()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := database.NewMongoStore(cfg.MongoURL)
	if err != nil {
		log.Fatalf("connect to mongodb: %v", err)
	}
	defer store.Close()
	log.Info("connected to mongodb")

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("init telegram bot: %v", err)
	}

	if err := seedOwner(store, cfg, log); err != nil {
		log.Warnf("seed owner: %v", err)
	}

	sessions := session.NewManager(draftTTL)
	notifier := bot.NewNotifier(api, store, log, cfg.AdminID, cfg.AdminGroupID)
	svc := service.New(store, sessions, notifier, log, cfg.PlatformUserID, cfg.MinTopupAmount)
	checker := auth.NewChecker(store, cfg.AdminID)

	sweeper := cleaner.New(store, notifier, log)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("start cleanup scheduler: %v", err)
	}
	defer sweeper.Stop()

	b := bot.New(api, svc, checker, notifier, log, cfg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		api.StopReceivingUpdates()
	}()

	b.Run()
}

// seedOwner makes sure the owner account exists and is authorized, so a
// fresh deployment is usable without manual database edits.
func seedOwner(store database.Store, cfg config.Config, log *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ownerID := strconv.FormatInt(cfg.AdminID, 10)
	if err := store.CreateUserIfAbsent(ctx, ownerID, "Owner", "", nil); err != nil {
		return err
	}

	authorized, err := store.LoadAuthorizedUsers(ctx)
	if err != nil {
		return err
	}
	if !authorized[ownerID] {
		if err := store.AddAuthorizedUser(ctx, ownerID); err != nil {
			return err
		}
		log.Infof("authorized owner %s", ownerID)
	}

	// Pulls in the owner-seeded admin list and default settings documents.
	if _, err := store.LoadAdminIDs(ctx, cfg.AdminID); err != nil {
		return err
	}
	if _, err := store.LoadSettings(ctx); err != nil {
		return err
	}
	return nil
}
