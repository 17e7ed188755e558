package clinic

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/detector"
	"github.com/dentascan/dentascan-go/internal/ingest"
)

type fixedDetector struct {
	detections []detector.RawDetection
}

func (f *fixedDetector) Detect(context.Context, string, float64) ([]detector.RawDetection, error) {
	return f.detections, nil
}

type testWorld struct {
	settings *conf.Settings
	ds       datastore.Interface
	detector *fixedDetector
	alice    *Session
	bob      *Session
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()

	settings := &conf.Settings{}
	settings.Main.DataRoot = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "test.db"
	settings.Detector.Threshold = 0.4
	settings.Annotation.StrokeColor = "#00FFFF"
	settings.Annotation.StrokeWidth = 2

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		assert.NoError(t, ds.Close())
	})

	aliceUser := datastore.User{Username: "alice", CredentialHash: "hash"}
	require.NoError(t, ds.CreateUser(&aliceUser))
	bobUser := datastore.User{Username: "bob", CredentialHash: "hash"}
	require.NoError(t, ds.CreateUser(&bobUser))

	det := &fixedDetector{}
	pipeline := ingest.New(settings, ds, det, nil)

	return &testWorld{
		settings: settings,
		ds:       ds,
		detector: det,
		alice:    NewSession(aliceUser.ID, settings, ds, pipeline),
		bob:      NewSession(bobUser.ID, settings, ds, pipeline),
	}
}

func writeSourceImage(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tooth.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))))
	return path
}

func TestCreateAndListPatient(t *testing.T) {
	w := newTestWorld(t)

	created, err := w.alice.CreatePatient("Jane Doe", "01-01-1990", "jane@x.com")
	require.NoError(t, err)

	patients, err := w.alice.ListPatients()
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, created.ID, patients[0].ID)
	assert.Equal(t, "Jane Doe", patients[0].Name)
	assert.Equal(t, "01-01-1990", patients[0].DateOfBirth)
	assert.Equal(t, "jane@x.com", patients[0].Email)
}

func TestCreatePatientRequiresName(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.alice.CreatePatient("   ", "", "")
	require.Error(t, err)
}

func TestSessionsAreIsolated(t *testing.T) {
	w := newTestWorld(t)

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)

	// bob sees nothing of alice's patients
	bobPatients, err := w.bob.ListPatients()
	require.NoError(t, err)
	assert.Empty(t, bobPatients)

	_, err = w.bob.GetPatient(patient.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	_, err = w.bob.History(patient.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	results, err := w.bob.SearchPatients("jane")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeletePatientCascadesToHistory(t *testing.T) {
	w := newTestWorld(t)
	w.detector.detections = []detector.RawDetection{
		{ClassID: 1, Confidence: 0.82, X1: 10, Y1: 10, X2: 50, Y2: 60},
	}

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)

	recordID, err := w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)

	require.NoError(t, w.alice.DeletePatient(patient.ID))

	patients, err := w.alice.ListPatients()
	require.NoError(t, err)
	assert.Empty(t, patients)

	_, err = w.ds.GetImagingRecord(recordID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	// deleting again is a no-op success
	assert.NoError(t, w.alice.DeletePatient(patient.ID))
}

func TestDeletePatientNotOwnedIsNoOpForCaller(t *testing.T) {
	w := newTestWorld(t)

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)

	// bob cannot delete alice's patient; to him it does not exist
	require.NoError(t, w.bob.DeletePatient(patient.ID))

	patients, err := w.alice.ListPatients()
	require.NoError(t, err)
	assert.Len(t, patients, 1, "patient must survive a delete from a non-owner")
}

func TestHistoryMostRecentFirst(t *testing.T) {
	w := newTestWorld(t)

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)

	first, err := w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)
	second, err := w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)

	history, err := w.alice.History(patient.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ID)
	assert.Equal(t, first, history[1].ID)
}

func TestRecordCount(t *testing.T) {
	w := newTestWorld(t)

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)

	count, err := w.alice.RecordCount(patient.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)
	_, err = w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)

	count, err = w.alice.RecordCount(patient.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// counts are owner scoped like every other read
	_, err = w.bob.RecordCount(patient.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestGetRecord(t *testing.T) {
	w := newTestWorld(t)
	w.detector.detections = []detector.RawDetection{
		{ClassID: 1, Confidence: 0.82, X1: 10, Y1: 10, X2: 50, Y2: 60},
	}

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)
	recordID, err := w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 64, 48))
	require.NoError(t, err)

	record, err := w.alice.GetRecord(recordID)
	require.NoError(t, err)
	assert.Equal(t, recordID, record.ID)
	assert.Equal(t, patient.ID, record.PatientID)
	require.Len(t, record.Detections, 1)
	assert.Equal(t, 1, record.Detections[0].ClassID)

	_, err = w.bob.GetRecord(recordID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	_, err = w.alice.GetRecord(recordID + 100)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestInspectImageLeavesNoState(t *testing.T) {
	w := newTestWorld(t)
	w.detector.detections = []detector.RawDetection{
		{ClassID: 3, Confidence: 0.9, X1: 1, Y1: 1, X2: 5, Y2: 5},
	}

	detections, err := w.alice.InspectImage(context.Background(), writeSourceImage(t, 64, 48))
	require.NoError(t, err)
	require.Len(t, detections, 1)

	patients, err := w.alice.ListPatients()
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestRenderRecord(t *testing.T) {
	w := newTestWorld(t)
	w.detector.detections = []detector.RawDetection{
		{ClassID: 1, Confidence: 0.82, X1: 10, Y1: 10, X2: 50, Y2: 60},
	}

	patient, err := w.alice.CreatePatient("Jane Doe", "", "")
	require.NoError(t, err)
	recordID, err := w.alice.Ingest(context.Background(), patient.ID, writeSourceImage(t, 100, 100))
	require.NoError(t, err)

	plan, err := w.alice.RenderRecord(recordID)
	require.NoError(t, err)
	assert.Equal(t, 100, plan.ImageWidth)
	assert.Equal(t, 100, plan.ImageHeight)
	require.Len(t, plan.Boxes, 1)
	assert.Equal(t, "Caries 0.82", plan.Boxes[0].Label.Text)

	// scoping applies to records as well
	_, err = w.bob.RenderRecord(recordID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}
