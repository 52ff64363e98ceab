package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"title_rotation_bot/internal/app"
	"title_rotation_bot/internal/infra/config"
	idb "title_rotation_bot/internal/infra/database"
	"title_rotation_bot/internal/infra/discord"
	"title_rotation_bot/internal/infra/logger"
	"title_rotation_bot/internal/infra/scheduler"

	"github.com/bwmarrin/discordgo"
)

const startupTimeout = 1 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("Title rotation bot starting")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Repositories
	configRepo := idb.NewPostgresGuildConfigRepository(db)
	boardRepo := idb.NewPostgresLeaderboardRepository(db)

	// Initialize Discord session and gateway adapter
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("FATAL: Could not create Discord session: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	gateway := discord.NewSessionAdapter(session)

	// Initialize services and scheduler
	rotationSvc := app.NewRotationService(configRepo, boardRepo, gateway, log.WithField("component", "rotation"))
	registry := scheduler.NewGuildJobRegistry(log)
	jobScheduler := scheduler.NewJobScheduler(registry, configRepo, gateway, rotationSvc, log.WithField("component", "scheduler"))
	settingsSvc := app.NewSettingsService(configRepo, jobScheduler)
	pointsSvc := app.NewPointsService(boardRepo, cfg.PointsPerMsg, cfg.PointsCooldown, log.WithField("component", "points"))

	// Register event handlers
	handler := discord.NewHandler(settingsSvc, pointsSvc, rotationSvc, jobScheduler, gateway, cfg.CommandPrefix, log.WithField("component", "handlers"))
	handler.Register(session)

	if err := session.Open(); err != nil {
		log.Fatalf("FATAL: Could not open Discord session: %v", err)
	}
	log.Info("Discord session opened")

	// Recompute every guild's schedule from the stored expressions; next
	// fire times are never persisted across restarts.
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	if err := jobScheduler.ScheduleAll(ctx); err != nil {
		log.WithError(err).Error("Startup scheduling incomplete; guilds will reschedule on ready events")
	}
	cancel()
	jobScheduler.Start()

	log.Info("Application setup complete")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application")
	jobScheduler.Stop()
	if err := session.Close(); err != nil {
		log.WithError(err).Warn("Discord session close failed")
	}
	log.Info("Application shut down gracefully")
}
