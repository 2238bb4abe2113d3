package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vigintitres/scripta/backend/internal/auth"
	"github.com/vigintitres/scripta/backend/internal/cache"
	"github.com/vigintitres/scripta/backend/internal/config"
	"github.com/vigintitres/scripta/backend/internal/database"
	"github.com/vigintitres/scripta/backend/internal/events"
	"github.com/vigintitres/scripta/backend/internal/images"
	"github.com/vigintitres/scripta/backend/internal/logging"
	"github.com/vigintitres/scripta/backend/internal/posts"
	"github.com/vigintitres/scripta/backend/internal/server"
	"github.com/vigintitres/scripta/backend/internal/storage"
	"github.com/vigintitres/scripta/backend/internal/users"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scripta-api",
		Short: "Scripta journaling backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("optimizer-url", defaults.GetString("images.optimizer_url"), "Image optimization endpoint URL")
	cmd.PersistentFlags().String("blob-endpoint", defaults.GetString("blob.endpoint"), "Object store endpoint")
	cmd.PersistentFlags().String("blob-bucket", defaults.GetString("blob.bucket"), "Object store bucket")
	cmd.PersistentFlags().String("blob-public-base-url", defaults.GetString("blob.public_base_url"), "Public base URL for stored objects")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address for the post list cache")
	cmd.PersistentFlags().String("nats-url", defaults.GetString("nats.url"), "NATS URL for post lifecycle events")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "images.optimizer_url", "optimizer-url")
	bindFlag(cmd, "blob.endpoint", "blob-endpoint")
	bindFlag(cmd, "blob.bucket", "blob-bucket")
	bindFlag(cmd, "blob.public_base_url", "blob-public-base-url")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "nats.url", "nats-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "scripta-auth",
		Audience:      "scripta-api",
		SessionTTL:    appConfig.TokenTTL,
	})

	var googleVerifier server.GoogleVerifier
	if appConfig.GoogleClientID != "" {
		verifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			Audience: appConfig.GoogleClientID,
			JWKSURL:  appConfig.GoogleJWKSURL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		googleVerifier = verifier
	}

	idProvider := posts.NewUUIDProvider()

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	var blobStore *storage.MinioStore
	if appConfig.BlobEndpoint != "" {
		blobStore, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      appConfig.BlobEndpoint,
			AccessKey:     appConfig.BlobAccessKey,
			SecretKey:     appConfig.BlobSecretKey,
			Bucket:        appConfig.BlobBucket,
			PublicBaseURL: appConfig.BlobPublicBaseURL,
			UseSSL:        appConfig.BlobUseSSL,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		if err := blobStore.EnsureBucket(ctx); err != nil {
			logger.Warn("blob bucket check failed", zap.Error(err))
		}
	}

	var listCache posts.ListCache
	if appConfig.RedisAddr != "" {
		postListCache, err := cache.NewPostListCache(ctx, appConfig.RedisAddr, appConfig.RedisPassword, logger)
		if err != nil {
			return err
		}
		defer postListCache.Close() //nolint:errcheck
		listCache = postListCache
	}

	var eventPublisher posts.EventPublisher
	if appConfig.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(appConfig.NATSURL, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		eventPublisher = natsPublisher
	}

	var blobDeleter posts.BlobDeleter
	if blobStore != nil {
		blobDeleter = blobStore
	}

	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Blobs:      blobDeleter,
		Cache:      listCache,
		Events:     eventPublisher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var imageUploader server.ImageUploader
	if blobStore != nil {
		var optimizer images.Optimizer
		if appConfig.OptimizerURL != "" {
			optimizerClient, err := images.NewOptimizerClient(appConfig.OptimizerURL, nil)
			if err != nil {
				return err
			}
			optimizer = optimizerClient
		}
		pipeline, err := images.NewPipeline(images.PipelineConfig{
			Blobs:     blobStore,
			Optimizer: optimizer,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		imageUploader = pipeline
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:   tokenManager,
		GoogleVerifier: googleVerifier,
		UsersService:   usersService,
		PostsService:   postsService,
		ImageUploader:  imageUploader,
		Realtime:       server.NewRealtimeDispatcher(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
