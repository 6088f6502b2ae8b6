package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/moreiraracing/taller-motos/internal/cloudinary"
	"github.com/moreiraracing/taller-motos/internal/config"
	httpserver "github.com/moreiraracing/taller-motos/internal/interfaces/http"
	"github.com/moreiraracing/taller-motos/internal/invoice"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/internal/storage"
	"github.com/moreiraracing/taller-motos/pkg/database"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

func main() {
	configPath := "configs/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	features := cfg.Features()
	logger.Info("Starting motorcycle workshop backend",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("uploads_enabled", features.UploadEnabled),
		zap.Bool("cloudinary_enabled", features.CloudinaryEnabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := storage.NewFolderManager(dir, logger).EnsureBase(); err != nil {
			logger.Fatal("Failed to create database directory", zap.Error(err))
		}
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations, then patch schemas created before image_path existed
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(ctx, cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	if err := migrator.EnsureColumns(ctx, repository.RequiredColumns); err != nil {
		logger.Fatal("Failed to ensure required columns", zap.Error(err))
	}

	// Create storage directories
	uploadFolders := storage.NewFolderManager(cfg.Storage.UploadsDir, logger)
	if _, err := uploadFolders.CreateFolder("services"); err != nil {
		logger.Fatal("Failed to create uploads directory", zap.Error(err))
	}
	if err := storage.NewFolderManager(cfg.Storage.InvoicesDir, logger).EnsureBase(); err != nil {
		logger.Fatal("Failed to create invoices directory", zap.Error(err))
	}
	documents := storage.NewLocalFileStorage(cfg.Storage.InvoicesDir, logger)
	uploads := storage.NewLocalFileStorage(cfg.Storage.UploadsDir, logger)

	// Initialize repositories
	clientRepo := repository.NewClientRepository(db.DB, logger)
	motoRepo := repository.NewMotoRepository(db.DB, logger)
	serviceRepo := repository.NewServiceRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)

	kvLogger := utils.NewKVLogger(logger)

	// Cloudinary is optional; without credentials uploads stay local
	var uploader httpserver.ImageUploader
	if features.CloudinaryEnabled {
		uploader = cloudinary.NewClient(cloudinary.Config{
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
		}, logger)
	}

	// Initialize the invoice pipeline
	retry := invoice.DefaultRetryStrategy()
	retry.MaxAttempts = cfg.Images.FetchAttempts
	resolver := invoice.NewImageResolver(invoice.ResolverConfig{
		PublicRoot:  cfg.Storage.PublicRoot,
		Timeout:     cfg.Images.FetchTimeout,
		MaxBytes:    cfg.Images.MaxBytes,
		Concurrency: cfg.Images.Concurrency,
		Retry:       retry,
	}, nil, kvLogger)
	renderer := invoice.NewRenderer(invoice.Branding{
		ShopName: cfg.Shop.Name,
		Tagline:  cfg.Shop.Tagline,
		LogoPath: cfg.Shop.LogoPath,
	}, resolver, kvLogger)
	generator := invoice.NewGenerator(serviceRepo, renderer, documents, invoiceRepo, kvLogger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		UploadsDir:   cfg.Storage.UploadsDir,
		Debug:        cfg.Logger.Level == "debug",
	}, httpserver.Dependencies{
		Clients:       clientRepo,
		Motos:         motoRepo,
		Services:      serviceRepo,
		Ledger:        invoiceRepo,
		Invoices:      generator,
		Documents:     documents,
		Uploads:       uploads,
		Uploader:      uploader,
		DB:            db,
		Features:      features,
		MaxUploadSize: cfg.Uploads.MaxSize,
		RemoteFolder:  cfg.Cloudinary.Folder,
	}, kvLogger)

	// Blocks until SIGINT/SIGTERM, then drains in-flight requests
	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}
