// Package ingest orchestrates the detection ingestion pipeline: it accepts
// an image for a patient, runs the detection model, normalizes its output
// and persists the resulting imaging record atomically.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/detector"
	"github.com/dentascan/dentascan-go/internal/errors"
	"github.com/dentascan/dentascan-go/internal/imaging"
	"github.com/dentascan/dentascan-go/internal/logging"
	"github.com/dentascan/dentascan-go/internal/observability"
)

// Typed pipeline failures. Callers match these with errors.Is.
var (
	// ErrPatientNotFound is returned when the patient does not exist or is
	// not owned by the requesting user.
	ErrPatientNotFound = errors.NewStd("ingest: patient not found")
	// ErrSourceImageUnreadable is returned when the source image is missing
	// or cannot be decoded.
	ErrSourceImageUnreadable = errors.NewStd("ingest: source image unreadable")
	// ErrDetectorFailure is returned when the detector collaborator fails or
	// produces malformed output. It is fatal; the pipeline never substitutes
	// an empty result.
	ErrDetectorFailure = errors.NewStd("ingest: detector failure")
	// ErrPersistenceFailure is returned when the store rejects the record.
	// The copied image file may be orphaned in this case.
	ErrPersistenceFailure = errors.NewStd("ingest: persistence failure")
)

// Pipeline runs ingestion against an injected store and detector.
type Pipeline struct {
	settings *conf.Settings
	ds       datastore.Interface
	detector detector.Interface
	metrics  *observability.IngestMetrics
	log      *slog.Logger
}

// New creates an ingestion pipeline. metrics may be nil when no metrics
// collection is wanted, e.g. in tests.
func New(settings *conf.Settings, ds datastore.Interface, det detector.Interface, metrics *observability.IngestMetrics) *Pipeline {
	return &Pipeline{
		settings: settings,
		ds:       ds,
		detector: det,
		metrics:  metrics,
		log:      logging.ForService("ingest"),
	}
}

// Ingest processes a source image for a patient owned by userID: it copies
// the image into patient-scoped storage, runs detection on the copy and
// persists the imaging record with its normalized detection sequence.
// Re-running Ingest creates a new, independent record; it never merges.
func (p *Pipeline) Ingest(ctx context.Context, userID, patientID uint, sourceImagePath string) (uint, error) {
	opID := uuid.New().String()
	log := p.log.With("op_id", opID, "patient_id", patientID)

	patient, err := p.ds.GetPatient(patientID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			p.recordIngest("patient_not_found")
			return 0, fmt.Errorf("%w: id %d", ErrPatientNotFound, patientID)
		}
		return 0, err
	}
	if patient.UserID != userID {
		// a patient owned by another user is indistinguishable from a missing one
		p.recordIngest("patient_not_found")
		return 0, fmt.Errorf("%w: id %d", ErrPatientNotFound, patientID)
	}

	if _, err := imaging.Probe(sourceImagePath); err != nil {
		p.recordIngest("image_unreadable")
		return 0, fmt.Errorf("%w: %w", ErrSourceImageUnreadable, err)
	}

	storagePath, err := p.copyToPatientStorage(patientID, sourceImagePath)
	if err != nil {
		p.recordIngest("copy_failure")
		return 0, err
	}

	detections, err := p.detect(ctx, storagePath)
	if err != nil {
		// The copy stays behind; no database row references it.
		p.recordIngest("detector_failure")
		return 0, err
	}

	record := datastore.ImagingRecord{
		PatientID:   patientID,
		StoragePath: storagePath,
		Detections:  detections,
	}
	if err := p.ds.SaveImagingRecord(&record); err != nil {
		p.recordIngest("persistence_failure")
		return 0, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	p.recordIngest("success")
	if p.metrics != nil {
		p.metrics.RecordImagingRecordSaved()
	}
	log.Info("imaging record ingested",
		"record_id", record.ID,
		"storage_path", storagePath,
		"detections", len(detections))

	return record.ID, nil
}

// IngestWithoutPatient runs detection on an image for ad-hoc inspection
// without copying the file or touching the patient and record tables.
func (p *Pipeline) IngestWithoutPatient(ctx context.Context, sourceImagePath string) ([]datastore.Detection, error) {
	if _, err := imaging.Probe(sourceImagePath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceImageUnreadable, err)
	}
	return p.detect(ctx, sourceImagePath)
}

// detect invokes the detector at the configured threshold and normalizes
// its raw output. The detector contract says output is already filtered at
// the threshold, but the pipeline re-validates rather than trusting it.
func (p *Pipeline) detect(ctx context.Context, imagePath string) ([]datastore.Detection, error) {
	threshold := p.settings.Detector.Threshold

	start := time.Now()
	raw, err := p.detector.Detect(ctx, imagePath, threshold)
	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.ObserveDetectorDuration(elapsed.Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectorFailure, err)
	}

	detections := make([]datastore.Detection, 0, len(raw))
	for i := range raw {
		r := &raw[i]
		if r.Confidence < threshold {
			if p.metrics != nil {
				p.metrics.RecordDetection("below_threshold")
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordDetection("persisted")
		}
		detections = append(detections, datastore.Detection{
			ClassID:    r.ClassID,
			Confidence: r.Confidence,
			X1:         r.X1,
			Y1:         r.Y1,
			X2:         r.X2,
			Y2:         r.Y2,
		})
	}

	return detections, nil
}

// copyToPatientStorage copies the source image into the patient-partitioned
// storage directory, retaining the original filename. An existing file with
// the same name is overwritten. A partially written copy is removed when the
// copy itself fails.
func (p *Pipeline) copyToPatientStorage(patientID uint, sourceImagePath string) (string, error) {
	destDir := p.settings.XrayDir(patientID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.New(fmt.Errorf("creating patient storage directory: %w", err)).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("dir", destDir).
			Build()
	}

	destPath := filepath.Join(destDir, filepath.Base(sourceImagePath))
	if err := copyFile(sourceImagePath, destPath); err != nil {
		return "", errors.New(fmt.Errorf("copying image into patient storage: %w", err)).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("source", sourceImagePath).
			Context("dest", destPath).
			Build()
	}

	return destPath, nil
}

// copyFile copies src to dst, removing a partial dst on failure.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func (p *Pipeline) recordIngest(status string) {
	if p.metrics != nil {
		p.metrics.RecordIngest(status)
	}
}
