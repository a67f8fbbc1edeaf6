package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/cleanup"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/config"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/handlers"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/logging"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/notifications"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/storage"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/transcription"
)

const version = "1.0.0"

// several files may share one upload request
const uploadBatchFactor = 8

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logBuffer := logging.NewLogBuffer(logging.DefaultBufferLines)
	log := logging.New(cfg.Logging.Level, logBuffer)

	if err := run(cfg, log, logBuffer); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger, logBuffer *logging.LogBuffer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("initializing components")

	spool, err := storage.NewSpool(cfg.Storage.SpoolDir)
	if err != nil {
		return err
	}
	if err := spool.Lock(); err != nil {
		return err
	}
	defer spool.Unlock()

	var (
		sink queue.ResultSink
		db   *storage.MetadataDB
	)
	if cfg.Storage.ArchiveEnabled {
		archive, archiveDB, err := openArchive(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer archiveDB.Close()
		sink, db = archive, archiveDB
	} else {
		log.Info().Msg("transcript archive disabled")
	}

	notes := notifications.NewService(cfg.NotificationTTL())
	client := transcription.NewClient(cfg.Transcription.Endpoint, cfg.RequestTimeout())
	ctrl := queue.NewController(client, notes, queue.Options{
		HideDelay: cfg.ProgressHideDelay(),
		Sink:      sink,
		Logger:    log.With().Str("component", "queue").Logger(),
	})

	hub := handlers.NewStreamHub(ctrl.Snapshot, log.With().Str("component", "stream").Logger())
	ctrl.OnChange(hub.Broadcast)
	notes.OnChange(hub.Broadcast)

	cleanupScheduler := cleanup.NewScheduler(
		spool.Dir(),
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		ctrl.SpooledPaths,
		log.With().Str("component", "cleanup").Logger(),
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Limits.MaxFileSizeMB * 1024 * 1024 * uploadBatchFactor,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: io.MultiWriter(os.Stdout, logBuffer),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	routes := &handlers.Handlers{
		Page:    handlers.NewPageHandler(ctrl),
		Queue:   handlers.NewQueueHandler(ctx, ctrl, notes),
		Upload:  handlers.NewUploadHandler(ctrl, spool, notes, cfg.Limits.MaxFileSizeMB, log),
		GDrive:  handlers.NewGDriveHandler(ctrl, spool, cfg.Limits.MaxFileSizeMB, log),
		YouTube: handlers.NewYouTubeHandler(ctx, ctrl, spool, notes, cfg.Limits.MaxFileSizeMB, log),
		History: handlers.NewHistoryHandler(db),
		Stream:  hub,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"version":    version,
			"processing": ctrl.IsProcessing(),
		})
	})

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	routes.Register(app)

	addr := cfg.Addr()
	log.Info().
		Str("addr", addr).
		Str("endpoint", client.Endpoint()).
		Str("spool", spool.Dir()).
		Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully")
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

// openArchive wires local transcript files, the history database and the
// optional Google Drive copy
func openArchive(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage.Archive, *storage.MetadataDB, error) {
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var uploader storage.TranscriptUploader
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Google Drive not available, transcripts will only be saved locally")
		} else {
			uploader = driveClient
			log.Info().Str("folder", cfg.GoogleDrive.FolderName).Msg("Google Drive integration enabled")
		}
	} else {
		log.Info().Msg("Google Drive credentials not found, saving locally only")
	}

	archive := storage.NewArchive(
		storage.NewLocalStorage(cfg.Storage.OutputDir),
		db,
		uploader,
		log.With().Str("component", "archive").Logger(),
	)
	log.Info().Str("output_dir", cfg.Storage.OutputDir).Str("database", cfg.Storage.Database).Msg("transcript archive enabled")
	return archive, db, nil
}
