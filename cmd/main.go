package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"qna-live/repositories"
	"qna-live/runtime"
	"qna-live/runtime/workers"
	"qna-live/services"
	"qna-live/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := loggerFromLevel(config.LogLevel)

	censoredChar, err := CharacterRune(config.CensoredChar)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	notificationRepository := repositories.NewNotificationRepository(db, log)
	roomRepository := repositories.NewRoomRepository(db)
	voteRepository := repositories.NewVoteRepository(db)
	userRepository := repositories.NewUserRepository(db)

	// 4. Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	sessions := runtime.NewSessionManager(config.SessionRetention)
	typing := runtime.NewTypingTracker(config.TypingWindow)

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, sessions, typing,
		roomRepository, messageRepository, notificationRepository,
		config.BufferSize, config.SinkTimeout, censoredChar,
	)
	sup.Add(workers.NewHeartbeatWorker(log, registry, config.HeartbeatInterval))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 6. Services & Transport
	chatService := services.NewChatService(orchestrator, roomRepository)
	notificationService := services.NewNotificationService(orchestrator, notificationRepository)
	voteService := services.NewVoteService(voteRepository)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server := ws.NewServer(log, orchestrator, chatService,
		notificationService, voteService, authService,
		config.ConnectionBufferSize, config.KickThreshold)
	server.Register(app)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting realtime server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	_ = app.Shutdown()
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func loggerFromLevel(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
