package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

// FeatureStore keeps an online copy of the gold feature table in Redis, one
// JSON document per original patient id.
type FeatureStore struct {
	client    redis.Cmdable
	prefix    string
	cacheTTL  time.Duration
	batchSize int
}

func NewFeatureStore(client redis.Cmdable, prefix string, cacheTTL time.Duration) *FeatureStore {
	if prefix == "" {
		prefix = "features"
	}
	return &FeatureStore{client: client, prefix: prefix, cacheTTL: cacheTTL, batchSize: 500}
}

func (f *FeatureStore) Key(patientID int64) string {
	return fmt.Sprintf("%s:%s", f.prefix, strconv.FormatInt(patientID, 10))
}

// Materialize writes every feature row with the configured TTL using
// pipelined batches.
func (f *FeatureStore) Materialize(ctx context.Context, features []models.PatientFeatureVector) error {
	for start := 0; start < len(features); start += f.batchSize {
		end := min(start+f.batchSize, len(features))
		pipe := f.client.Pipeline()
		for _, fv := range features[start:end] {
			data, err := json.Marshal(fv)
			if err != nil {
				return fmt.Errorf("encoding features for patient %d: %w", fv.OriginalPatientID, err)
			}
			pipe.Set(ctx, f.Key(fv.OriginalPatientID), data, f.cacheTTL)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("materializing features: %w", err)
		}
	}

	logger.Component("featurestore").WithFields(map[string]interface{}{
		"rows": len(features),
		"ttl":  f.cacheTTL.String(),
	}).Info("Features materialized to cache")
	return nil
}

func (f *FeatureStore) Get(ctx context.Context, patientID int64) (models.PatientFeatureVector, error) {
	data, err := f.client.Get(ctx, f.Key(patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PatientFeatureVector{}, ErrFeaturesNotFound
	}
	if err != nil {
		return models.PatientFeatureVector{}, err
	}
	var fv models.PatientFeatureVector
	if err := json.Unmarshal(data, &fv); err != nil {
		return models.PatientFeatureVector{}, fmt.Errorf("decoding cached features: %w", err)
	}
	return fv, nil
}
