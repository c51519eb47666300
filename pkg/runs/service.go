// Package runs records pipeline runs and executes them one at a time.
package runs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/readmission/pkg/common/kafka"
	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/ingestion"
	"github.com/synaptica-ai/readmission/pkg/observability/metrics"
	"github.com/synaptica-ai/readmission/pkg/pipeline"
)

const eventSource = "readmission-pipeline"

type Runner interface {
	Run(ctx context.Context, runID string, raw models.RawSnapshot) (*pipeline.Result, error)
}

type Notifier interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// ErrInvalidSource rejects run locations that are not snapshot names under
// the configured roots.
var ErrInvalidSource = errors.New("invalid snapshot location")

// SourceResolver opens the snapshot location of a run. An empty location
// means the configured default.
type SourceResolver func(ctx context.Context, location string) (ingestion.Source, error)

type Service struct {
	store    Store
	runner   Runner
	resolve  SourceResolver
	notifier Notifier
	metrics  *metrics.Metrics

	// Every run overwrites the same snapshot tables, so runs never overlap.
	workerSem chan struct{}
	inflight  sync.WaitGroup
}

// NewService wires the ledger. notifier and m may be nil.
func NewService(store Store, runner Runner, resolve SourceResolver, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		runner:    runner,
		resolve:   resolve,
		notifier:  notifier,
		metrics:   m,
		workerSem: make(chan struct{}, 1),
	}
}

// Trigger records a queued run and executes it in the background.
func (s *Service) Trigger(ctx context.Context, input TriggerInput) (models.PipelineRun, error) {
	run, err := s.create(ctx, input)
	if err != nil {
		return models.PipelineRun{}, err
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.execute(context.Background(), run.ID, input)
	}()
	return toDomain(run), nil
}

// RunSync records a run and executes it on the caller's goroutine.
func (s *Service) RunSync(ctx context.Context, input TriggerInput) (models.PipelineRun, *pipeline.Result, error) {
	run, err := s.create(ctx, input)
	if err != nil {
		return models.PipelineRun{}, nil, err
	}
	result, runErr := s.execute(ctx, run.ID, input)
	stored, err := s.Get(ctx, run.ID)
	if err != nil {
		return models.PipelineRun{}, result, err
	}
	return stored, result, runErr
}

// Wait blocks until background runs have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.PipelineRun, error) {
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return models.PipelineRun{}, err
	}
	return toDomain(run), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.PipelineRun, 0, len(runs))
	for i := range runs {
		results = append(results, toDomain(&runs[i]))
	}
	return results, nil
}

// HandleEvent triggers a run for snapshot.ready events and ignores others.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	if event.Type != kafka.EventSnapshotReady {
		return nil
	}
	location, _ := event.Data["location"].(string)
	run, err := s.Trigger(ctx, TriggerInput{
		Trigger: TriggerKafka,
		Source:  location,
		Params:  map[string]interface{}{"event_id": event.ID},
	})
	if errors.Is(err, ErrInvalidSource) {
		// Redelivery cannot fix the location, so the event is dropped.
		logger.Component("runs").WithError(err).WithField("event_id", event.ID).Warn("Snapshot event ignored")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Component("runs").WithFields(map[string]interface{}{
		"run_id":   run.ID,
		"event_id": event.ID,
	}).Info("Run triggered by snapshot event")
	return nil
}

func (s *Service) create(ctx context.Context, input TriggerInput) (*RunModel, error) {
	if input.Trigger == "" {
		input.Trigger = TriggerCLI
	}
	if err := ValidateLocation(input.Source); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	run := &RunModel{
		ID:        uuid.New(),
		Status:    StatusQueued,
		Trigger:   input.Trigger,
		Source:    input.Source,
		Params:    datatypes.JSONMap(input.Params),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

func (s *Service) execute(ctx context.Context, runID uuid.UUID, input TriggerInput) (*pipeline.Result, error) {
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	log := logger.Component("runs").WithField("run_id", runID.String())
	start := time.Now().UTC()
	if err := s.store.UpdateStatus(ctx, runID, StatusRunning, nil, ""); err != nil {
		log.WithError(err).Error("failed to mark run running")
	}
	if err := s.store.SetTimestamps(ctx, runID, &start, nil); err != nil {
		log.WithError(err).Error("failed to set start timestamp")
	}

	src, err := s.resolve(ctx, input.Source)
	if err != nil {
		return nil, s.fail(ctx, runID, start, fmt.Errorf("resolving source: %w", err))
	}
	raw, err := ingestion.LoadSnapshot(ctx, src, start)
	if err != nil {
		return nil, s.fail(ctx, runID, start, fmt.Errorf("loading snapshot: %w", err))
	}
	result, err := s.runner.Run(ctx, runID.String(), raw)
	if err != nil {
		return nil, s.fail(ctx, runID, start, err)
	}

	summary := Summary(result)
	summary["source"] = src.Describe()
	if err := s.store.UpdateStatus(ctx, runID, StatusCompleted, summary, ""); err != nil {
		log.WithError(err).Error("failed to mark run complete")
	}
	completed := time.Now().UTC()
	if err := s.store.SetTimestamps(ctx, runID, nil, &completed); err != nil {
		log.WithError(err).Error("failed to set completion timestamp")
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(StatusCompleted, completed.Sub(start), completed)
	}
	s.notify(ctx, kafka.EventPipelineCompleted, runID, summary)

	log.WithField("duration", completed.Sub(start).String()).Info("Pipeline run completed")
	return result, nil
}

func (s *Service) fail(ctx context.Context, runID uuid.UUID, start time.Time, err error) error {
	logger.Component("runs").WithError(err).WithField("run_id", runID.String()).Error("Pipeline run failed")
	_ = s.store.UpdateStatus(ctx, runID, StatusFailed, nil, err.Error())
	completed := time.Now().UTC()
	_ = s.store.SetTimestamps(ctx, runID, nil, &completed)
	if s.metrics != nil {
		s.metrics.ObserveRun(StatusFailed, completed.Sub(start), completed)
	}
	s.notify(ctx, kafka.EventPipelineFailed, runID, map[string]interface{}{"error": err.Error()})
	return err
}

func (s *Service) notify(ctx context.Context, eventType string, runID uuid.UUID, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{"run_id": runID.String()}
	for k, v := range data {
		payload[k] = v
	}
	if err := s.notifier.PublishEvent(ctx, eventType, eventSource, payload); err != nil {
		logger.Component("runs").WithError(err).Warn("Run event not published")
	}
}

// Summary flattens a run result into the ledger summary.
func Summary(result *pipeline.Result) map[string]interface{} {
	summary := map[string]interface{}{
		"duration_seconds": result.Duration.Seconds(),
		"feature_rows":     len(result.Gold.Features),
		"generated_at":     result.Gold.GeneratedAt.Format(time.RFC3339),
	}
	values := make(map[string]interface{}, len(result.Gold.Metrics))
	for _, m := range result.Gold.Metrics {
		values[m.MetricName] = m.Value
	}
	summary["metrics"] = values
	return summary
}

// SourceRoots are the only places snapshots are read from. HTTP.BaseURL takes
// precedence over Dir when set.
type SourceRoots struct {
	Dir  string
	HTTP ingestion.HTTPSourceConfig
}

// ValidateLocation accepts the empty location and slash-separated snapshot
// names such as "2024-01-01" or "exports/2024-01-01". URLs, absolute paths
// and names that step outside the root are rejected.
func ValidateLocation(location string) error {
	if location == "" {
		return nil
	}
	if strings.ContainsAny(location, ":\\") {
		return fmt.Errorf("%w: %q", ErrInvalidSource, location)
	}
	for _, segment := range strings.Split(location, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidSource, location)
		}
	}
	return nil
}

// NewSourceResolver resolves snapshot names against roots. The configured
// export credentials are only ever sent to roots.HTTP.BaseURL.
func NewSourceResolver(roots SourceRoots) SourceResolver {
	return func(ctx context.Context, location string) (ingestion.Source, error) {
		if err := ValidateLocation(location); err != nil {
			return nil, err
		}
		switch {
		case roots.HTTP.BaseURL != "":
			cfg := roots.HTTP
			if location != "" {
				segments := strings.Split(location, "/")
				for i, segment := range segments {
					segments[i] = url.PathEscape(segment)
				}
				cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Join(segments, "/")
			}
			return ingestion.NewHTTPSource(ctx, cfg)
		case roots.Dir != "":
			return ingestion.NewDirSource(filepath.Join(roots.Dir, filepath.FromSlash(location))), nil
		default:
			return nil, fmt.Errorf("no snapshot source configured")
		}
	}
}

func toDomain(run *RunModel) models.PipelineRun {
	result := models.PipelineRun{
		ID:           run.ID.String(),
		Status:       run.Status,
		Trigger:      run.Trigger,
		Source:       run.Source,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
	}
	if run.Summary != nil {
		result.Summary = map[string]interface{}(run.Summary)
	}
	return result
}
