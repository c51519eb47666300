package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/readmission/pkg/api"
	"github.com/synaptica-ai/readmission/pkg/common/config"
	"github.com/synaptica-ai/readmission/pkg/common/database"
	"github.com/synaptica-ai/readmission/pkg/common/kafka"
	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/observability/metrics"
	"github.com/synaptica-ai/readmission/pkg/pipeline"
	"github.com/synaptica-ai/readmission/pkg/runs"
	"github.com/synaptica-ai/readmission/pkg/storage"
)

var serveFlags struct {
	noConsumer bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API and react to snapshot events",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.noConsumer, "no-consumer", false, "Do not consume snapshot.ready events")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	terms, err := loadNormalizer(cfg)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	resolve := sourceResolver(cfg)

	db, err := database.GetPostgres(cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer database.ClosePostgres()

	repo := storage.NewRepository(db, cfg.WriteBatchSize)
	if err := repo.AutoMigrate(); err != nil {
		return err
	}
	ledger := runs.NewRepository(db)
	if err := ledger.AutoMigrate(); err != nil {
		return err
	}
	cache := storage.NewFeatureStore(database.GetRedis(cfg), cfg.FeatureStorePrefix, cfg.FeatureStoreCacheTTL)
	defer database.CloseRedis()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaRunTopic)
	defer producer.Close()

	m := metrics.New(nil)
	p := pipeline.New(terms, pipelineConfig(cfg, false), pipeline.Sinks{Silver: repo, Gold: repo, Cache: cache}, m)
	svc := runs.NewService(ledger, p, resolve, producer, m)

	if !serveFlags.noConsumer {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaSnapshotTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, svc.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Snapshot consumer stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      api.NewRouter(api.NewHandler(svc, cache, repo), m.Handler()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Readmission pipeline service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Log.Info("Shutting down readmission pipeline service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	svc.Wait()

	logger.Log.Info("Readmission pipeline service stopped")
	return nil
}
