// Package pipeline turns a raw snapshot into the cleaned layer and the
// per-patient feature table, writing each layer as a complete replacement.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/features"
	"github.com/synaptica-ai/readmission/pkg/linkage"
	"github.com/synaptica-ai/readmission/pkg/observability/metrics"
	"github.com/synaptica-ai/readmission/pkg/outlier"
	"github.com/synaptica-ai/readmission/pkg/terminology"
)

const (
	StageSilver = "silver"
	StageGold   = "gold"
	StageCache  = "cache"
)

type SilverWriter interface {
	WriteSilver(ctx context.Context, silver models.SilverSnapshot) error
}

type GoldWriter interface {
	WriteGold(ctx context.Context, gold models.GoldSnapshot) error
}

type FeatureCache interface {
	Materialize(ctx context.Context, features []models.PatientFeatureVector) error
}

// Sinks receive the snapshots of a run. Nil sinks are skipped, which makes a
// run with no sinks a dry run.
type Sinks struct {
	Silver SilverWriter
	Gold   GoldWriter
	Cache  FeatureCache
}

type Config struct {
	OutlierMultiplier      float64
	OutlierMinSamples      int
	NearDuplicateThreshold float64
	Features               features.Options
}

type Pipeline struct {
	terms      *terminology.Normalizer
	detector   *outlier.Detector
	matcher    *linkage.Matcher
	aggregator *features.Aggregator
	sinks      Sinks
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(terms *terminology.Normalizer, cfg Config, sinks Sinks, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		terms:      terms,
		detector:   outlier.NewDetector(cfg.OutlierMultiplier, cfg.OutlierMinSamples),
		matcher:    linkage.NewMatcher(cfg.NearDuplicateThreshold),
		aggregator: features.NewAggregator(terms, cfg.Features),
		sinks:      sinks,
		metrics:    m,
		now:        time.Now,
	}
}

// Result describes one completed run.
type Result struct {
	RunID    string
	Silver   models.SilverSnapshot
	Gold     models.GoldSnapshot
	Report   QualityReport
	Duration time.Duration
}

// Run executes bronze to gold for one snapshot. A failure in any stage aborts
// the run; stages already written stay written and a rerun replaces them.
func (p *Pipeline) Run(ctx context.Context, runID string, raw models.RawSnapshot) (*Result, error) {
	log := logger.Component("pipeline").WithField("run_id", runID)
	start := p.now()

	stageStart := p.now()
	silver, err := p.Clean(ctx, raw, start.UTC())
	if err != nil {
		return nil, fmt.Errorf("cleaning snapshot: %w", err)
	}
	if p.sinks.Silver != nil {
		if err := p.sinks.Silver.WriteSilver(ctx, silver); err != nil {
			return nil, err
		}
	}
	p.observeStage(StageSilver, stageStart)
	log.WithField("stage", StageSilver).Info("Silver layer complete")

	stageStart = p.now()
	gold, report := p.Aggregate(silver, p.now().UTC())
	if p.sinks.Gold != nil {
		if err := p.sinks.Gold.WriteGold(ctx, gold); err != nil {
			return nil, err
		}
	}
	p.observeStage(StageGold, stageStart)
	log.WithFields(map[string]interface{}{
		"stage":    StageGold,
		"features": len(gold.Features),
	}).Info("Gold layer complete")

	if p.sinks.Cache != nil {
		stageStart = p.now()
		if err := p.sinks.Cache.Materialize(ctx, gold.Features); err != nil {
			log.WithError(err).Warn("Online feature cache not refreshed")
		}
		p.observeStage(StageCache, stageStart)
	}

	p.observeReport(report, gold.Metrics)
	report.Log(log)

	return &Result{
		RunID:    runID,
		Silver:   silver,
		Gold:     gold,
		Report:   report,
		Duration: p.now().Sub(start),
	}, nil
}

// Clean builds the silver snapshot. The four domains are independent and
// are cleaned concurrently.
func (p *Pipeline) Clean(ctx context.Context, raw models.RawSnapshot, processedAt time.Time) (models.SilverSnapshot, error) {
	silver := models.SilverSnapshot{ProcessedAt: processedAt}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		silver.Patients = cleanPatients(raw.Patients, processedAt)
		silver.NearDuplicates = p.matcher.NearDuplicates(silver.Patients)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		silver.Diagnoses = cleanDiagnoses(raw.Diagnoses, processedAt)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		silver.Labs, silver.LabStats = cleanLabs(raw.Labs, p.detector, processedAt)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		silver.Medications = cleanMedications(raw.Medications, p.terms, processedAt)
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.SilverSnapshot{}, err
	}
	return silver, nil
}

// Aggregate builds the gold snapshot and the quality report from silver.
func (p *Pipeline) Aggregate(silver models.SilverSnapshot, generatedAt time.Time) (models.GoldSnapshot, QualityReport) {
	feats := p.aggregator.Aggregate(silver, generatedAt)
	report := buildReport(silver, feats)
	return models.GoldSnapshot{
		Features:    feats.Features,
		Metrics:     report.Metrics(generatedAt),
		GeneratedAt: generatedAt,
	}, report
}

func (p *Pipeline) observeStage(stage string, since time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, p.now().Sub(since))
	}
}

func (p *Pipeline) observeReport(r QualityReport, rows []models.QualityMetric) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveDomain("patients", r.Patients.Total, r.Patients.Issues)
	p.metrics.ObserveDomain("diagnoses", r.Diagnoses.Total, r.Diagnoses.Issues)
	p.metrics.ObserveDomain("labs", r.Labs.Total, r.Labs.Issues)
	p.metrics.ObserveDomain("medications", r.Medications.Total, r.Medications.Issues)
	for _, m := range rows {
		p.metrics.ObserveQuality(m.MetricName, m.Value)
	}
}
