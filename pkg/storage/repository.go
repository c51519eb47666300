// Package storage persists the silver and gold snapshots of a run.
package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

const (
	TableSilverPatients       = "silver_patients"
	TableSilverDiagnoses      = "silver_diagnoses"
	TableSilverLabResults     = "silver_lab_results"
	TableSilverMedications    = "silver_medications"
	TableSilverNearDuplicates = "silver_near_duplicates"
	TableGoldFeatures         = "gold_patient_readmission_features"
	TableGoldQualityMetrics   = "gold_data_quality_metrics"
)

var ErrFeaturesNotFound = errors.New("patient features not found")

// Repository writes each snapshot with full overwrite. Silver tables are
// replaced together in one transaction, as are gold tables.
type Repository struct {
	db        *gorm.DB
	batchSize int
}

func NewRepository(db *gorm.DB, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Repository{db: db, batchSize: batchSize}
}

func (r *Repository) AutoMigrate() error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{TableSilverPatients, &models.CleanPatient{}},
		{TableSilverDiagnoses, &models.CleanDiagnosis{}},
		{TableSilverLabResults, &models.CleanLab{}},
		{TableSilverMedications, &models.CleanMedication{}},
		{TableSilverNearDuplicates, &models.NearDuplicate{}},
		{TableGoldFeatures, &models.PatientFeatureVector{}},
		{TableGoldQualityMetrics, &models.QualityMetric{}},
	}
	for _, t := range tables {
		if err := r.db.Table(t.name).AutoMigrate(t.model); err != nil {
			return fmt.Errorf("migrating %s: %w", t.name, err)
		}
	}
	return nil
}

func (r *Repository) WriteSilver(ctx context.Context, silver models.SilverSnapshot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := overwrite(tx, TableSilverPatients, &models.CleanPatient{}, silver.Patients, r.batchSize); err != nil {
			return err
		}
		if err := overwrite(tx, TableSilverDiagnoses, &models.CleanDiagnosis{}, silver.Diagnoses, r.batchSize); err != nil {
			return err
		}
		if err := overwrite(tx, TableSilverLabResults, &models.CleanLab{}, silver.Labs, r.batchSize); err != nil {
			return err
		}
		if err := overwrite(tx, TableSilverMedications, &models.CleanMedication{}, silver.Medications, r.batchSize); err != nil {
			return err
		}
		return overwrite(tx, TableSilverNearDuplicates, &models.NearDuplicate{}, silver.NearDuplicates, r.batchSize)
	})
	if err != nil {
		return fmt.Errorf("writing silver snapshot: %w", err)
	}

	logger.Component("storage").WithFields(map[string]interface{}{
		"patients":    len(silver.Patients),
		"diagnoses":   len(silver.Diagnoses),
		"labs":        len(silver.Labs),
		"medications": len(silver.Medications),
	}).Info("Silver snapshot written")
	return nil
}

func (r *Repository) WriteGold(ctx context.Context, gold models.GoldSnapshot) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := overwrite(tx, TableGoldFeatures, &models.PatientFeatureVector{}, gold.Features, r.batchSize); err != nil {
			return err
		}
		return overwrite(tx, TableGoldQualityMetrics, &models.QualityMetric{}, gold.Metrics, r.batchSize)
	})
	if err != nil {
		return fmt.Errorf("writing gold snapshot: %w", err)
	}

	logger.Component("storage").WithFields(map[string]interface{}{
		"features": len(gold.Features),
		"metrics":  len(gold.Metrics),
	}).Info("Gold snapshot written")
	return nil
}

// overwrite empties table and inserts rows in batches.
func overwrite[T any](tx *gorm.DB, table string, model interface{}, rows []T, batchSize int) error {
	if err := tx.Table(table).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Table(table).CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// FeaturesByPatient reads one gold row by original patient id.
func (r *Repository) FeaturesByPatient(ctx context.Context, patientID int64) (models.PatientFeatureVector, error) {
	var fv models.PatientFeatureVector
	err := r.db.WithContext(ctx).Table(TableGoldFeatures).Where("original_patient_id = ?", patientID).Take(&fv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PatientFeatureVector{}, ErrFeaturesNotFound
	}
	return fv, err
}

// QualityMetrics returns the current gold metrics summary.
func (r *Repository) QualityMetrics(ctx context.Context) ([]models.QualityMetric, error) {
	var metrics []models.QualityMetric
	err := r.db.WithContext(ctx).Table(TableGoldQualityMetrics).Order("metric_name").Find(&metrics).Error
	return metrics, err
}
