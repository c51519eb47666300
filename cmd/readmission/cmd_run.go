package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/synaptica-ai/readmission/pkg/common/config"
	"github.com/synaptica-ai/readmission/pkg/common/database"
	"github.com/synaptica-ai/readmission/pkg/common/kafka"
	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/ingestion"
	"github.com/synaptica-ai/readmission/pkg/observability/metrics"
	"github.com/synaptica-ai/readmission/pkg/pipeline"
	"github.com/synaptica-ai/readmission/pkg/runs"
	"github.com/synaptica-ai/readmission/pkg/storage"
)

var runFlags struct {
	source              string
	dryRun              bool
	noEvents            bool
	includeStandardized bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once over a snapshot",
	Long:  "Load a snapshot, write the silver and gold layers and print the quality report.\nWith --dry-run nothing is written and no run is recorded.",
	RunE:  runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.source, "source", "", "Snapshot name under SOURCE_BASE_URL or SOURCE_DIR (default: the root itself)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "Compute the layers without writing them")
	f.BoolVar(&runFlags.noEvents, "no-events", false, "Do not publish run events to Kafka")
	f.BoolVar(&runFlags.includeStandardized, "include-standardized-names", false, "Count medications whose only issue is a standardized name")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	terms, err := loadNormalizer(cfg)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	resolve := sourceResolver(cfg)

	if runFlags.dryRun {
		src, err := resolve(ctx, runFlags.source)
		if err != nil {
			return err
		}
		raw, err := ingestion.LoadSnapshot(ctx, src, time.Now().UTC())
		if err != nil {
			return err
		}
		p := pipeline.New(terms, pipelineConfig(cfg, runFlags.includeStandardized), pipeline.Sinks{}, nil)
		result, err := p.Run(ctx, "dry-run-"+uuid.New().String(), raw)
		if err != nil {
			return err
		}
		return printReport(cmd, result.Report)
	}

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

	var notifier runs.Notifier
	if !runFlags.noEvents {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaRunTopic)
		defer producer.Close()
		notifier = producer
	}

	m := metrics.New(nil)
	p := pipeline.New(terms, pipelineConfig(cfg, runFlags.includeStandardized), pipeline.Sinks{Silver: repo, Gold: repo, Cache: cache}, m)
	svc := runs.NewService(ledger, p, resolve, notifier, m)

	run, result, err := svc.RunSync(ctx, runs.TriggerInput{Trigger: runs.TriggerCLI, Source: runFlags.source})
	if err != nil {
		if run.ID != "" {
			return fmt.Errorf("run %s: %w", run.ID, err)
		}
		return err
	}
	logger.Log.WithField("run_id", run.ID).Info("Run recorded")
	return printReport(cmd, result.Report)
}

func printReport(cmd *cobra.Command, report pipeline.QualityReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
