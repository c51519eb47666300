package ingestion

import (
	"context"
	"io"
	"time"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
)

// LoadSnapshot reads all four domain files from src. Any schema violation
// aborts the load.
func LoadSnapshot(ctx context.Context, src Source, ingestedAt time.Time) (models.RawSnapshot, error) {
	var snap models.RawSnapshot
	var err error

	if snap.Patients, err = load(ctx, src, PatientsFile, ingestedAt, ReadPatients); err != nil {
		return models.RawSnapshot{}, err
	}
	if snap.Diagnoses, err = load(ctx, src, DiagnosesFile, ingestedAt, ReadDiagnoses); err != nil {
		return models.RawSnapshot{}, err
	}
	if snap.Labs, err = load(ctx, src, LabResultsFile, ingestedAt, ReadLabs); err != nil {
		return models.RawSnapshot{}, err
	}
	if snap.Medications, err = load(ctx, src, MedicationsFile, ingestedAt, ReadMedications); err != nil {
		return models.RawSnapshot{}, err
	}

	logger.Component("ingestion").WithFields(map[string]interface{}{
		"source":      src.Describe(),
		"patients":    len(snap.Patients),
		"diagnoses":   len(snap.Diagnoses),
		"labs":        len(snap.Labs),
		"medications": len(snap.Medications),
	}).Info("Bronze snapshot loaded")

	return snap, nil
}

func load[T any](ctx context.Context, src Source, name string, ingestedAt time.Time, read func(io.Reader, string, time.Time) ([]T, error)) ([]T, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return read(rc, name, ingestedAt)
}
