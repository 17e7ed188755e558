// Package clinic is the query and scoping layer: a Session is bound to one
// authenticated user and guarantees that no operation ever reads or writes
// a patient or imaging record outside that user's ownership. Entity ids are
// carried through every call; display names are never re-resolved to ids.
package clinic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/errors"
	"github.com/dentascan/dentascan-go/internal/imaging"
	"github.com/dentascan/dentascan-go/internal/ingest"
	"github.com/dentascan/dentascan-go/internal/logging"
	"github.com/dentascan/dentascan-go/internal/render"
)

// Session wraps store and pipeline operations with the caller's
// authenticated user id.
type Session struct {
	userID   uint
	settings *conf.Settings
	ds       datastore.Interface
	pipeline *ingest.Pipeline
	log      *slog.Logger
}

// NewSession creates a session scoped to the given authenticated user.
func NewSession(userID uint, settings *conf.Settings, ds datastore.Interface, pipeline *ingest.Pipeline) *Session {
	return &Session{
		userID:   userID,
		settings: settings,
		ds:       ds,
		pipeline: pipeline,
		log:      logging.ForService("clinic").With("user_id", userID),
	}
}

// UserID returns the authenticated user this session is scoped to.
func (s *Session) UserID() uint {
	return s.userID
}

// CreatePatient registers a new patient owned by the session user.
// Name is required; date of birth and email are optional.
func (s *Session) CreatePatient(name, dateOfBirth, email string) (datastore.Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return datastore.Patient{}, errors.Newf("patient name is required").
			Component("clinic").
			Category(errors.CategoryValidation).
			Build()
	}

	patient := datastore.Patient{
		UserID:      s.userID,
		Name:        name,
		DateOfBirth: dateOfBirth,
		Email:       email,
	}
	if err := s.ds.CreatePatient(&patient); err != nil {
		return datastore.Patient{}, err
	}

	s.log.Info("patient created", "patient_id", patient.ID, "name", patient.Name)
	return patient, nil
}

// ListPatients returns all patients owned by the session user.
func (s *Session) ListPatients() ([]datastore.Patient, error) {
	return s.ds.ListPatients(s.userID)
}

// SearchPatients performs a case-insensitive substring lookup over patient
// names owned by the session user. No matches is an empty result, not an
// error.
func (s *Session) SearchPatients(substring string) ([]datastore.Patient, error) {
	return s.ds.SearchPatients(s.userID, strings.TrimSpace(substring))
}

// GetPatient retrieves a patient by id, verifying ownership. A patient
// owned by another user is indistinguishable from a missing one.
func (s *Session) GetPatient(patientID uint) (datastore.Patient, error) {
	patient, err := s.ds.GetPatient(patientID)
	if err != nil {
		return datastore.Patient{}, err
	}
	if patient.UserID != s.userID {
		return datastore.Patient{}, fmt.Errorf("patient id %d: %w", patientID, datastore.ErrNotFound)
	}
	return patient, nil
}

// DeletePatient removes a patient and, atomically, all of its imaging
// records. Deleting an already deleted patient is a no-op success.
func (s *Session) DeletePatient(patientID uint) error {
	if _, err := s.GetPatient(patientID); err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.ds.DeletePatient(patientID); err != nil {
		return err
	}
	s.log.Info("patient deleted", "patient_id", patientID)
	return nil
}

// History returns the patient's imaging records, most recent first.
func (s *Session) History(patientID uint) ([]datastore.ImagingRecord, error) {
	if _, err := s.GetPatient(patientID); err != nil {
		return nil, err
	}
	return s.ds.ListImagingRecords(patientID)
}

// RecordCount returns the number of imaging records stored for a patient
// owned by the session user.
func (s *Session) RecordCount(patientID uint) (int64, error) {
	if _, err := s.GetPatient(patientID); err != nil {
		return 0, err
	}
	return s.ds.CountImagingRecords(patientID)
}

// GetRecord retrieves an imaging record by id, verifying ownership through
// the record's patient. A record belonging to another user's patient is
// indistinguishable from a missing one.
func (s *Session) GetRecord(recordID uint) (datastore.ImagingRecord, error) {
	record, err := s.ds.GetImagingRecord(recordID)
	if err != nil {
		return datastore.ImagingRecord{}, err
	}
	if _, err := s.GetPatient(record.PatientID); err != nil {
		return datastore.ImagingRecord{}, fmt.Errorf("imaging record id %d: %w", recordID, datastore.ErrNotFound)
	}
	return record, nil
}

// Ingest runs the detection ingestion pipeline for a patient owned by the
// session user and returns the new imaging record id.
func (s *Session) Ingest(ctx context.Context, patientID uint, sourceImagePath string) (uint, error) {
	return s.pipeline.Ingest(ctx, s.userID, patientID, sourceImagePath)
}

// InspectImage runs detection on an image for immediate review without
// creating any patient or record state.
func (s *Session) InspectImage(ctx context.Context, sourceImagePath string) ([]datastore.Detection, error) {
	return s.pipeline.IngestWithoutPatient(ctx, sourceImagePath)
}

// RenderRecord produces the annotation plan for a stored imaging record
// owned by the session user. The stored image is probed for its dimensions.
func (s *Session) RenderRecord(recordID uint) (*render.RenderPlan, error) {
	record, err := s.GetRecord(recordID)
	if err != nil {
		return nil, err
	}

	info, err := imaging.Probe(record.StoragePath)
	if err != nil {
		return nil, err
	}

	return render.RenderWithStyle(info.Width, info.Height, record.Detections, render.StyleFromSettings(s.settings))
}
