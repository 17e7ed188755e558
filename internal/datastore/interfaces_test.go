package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentascan/dentascan-go/internal/conf"
)

// createDatabase initializes a temporary SQLite database for testing
// purposes. It ensures the connection is opened and closed with the test.
func createDatabase(t *testing.T) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.DataRoot = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "test.db"

	dataStore := New(settings)

	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})

	return dataStore
}

func createTestUser(t *testing.T, ds Interface, username string) User {
	t.Helper()
	user := User{Username: username, CredentialHash: "$2a$10$testhashtesthashtesthash"}
	require.NoError(t, ds.CreateUser(&user))
	require.NotZero(t, user.ID)
	return user
}

func createTestPatient(t *testing.T, ds Interface, userID uint, name string) Patient {
	t.Helper()
	patient := Patient{UserID: userID, Name: name, DateOfBirth: "01-01-1990", Email: "jane@x.com"}
	require.NoError(t, ds.CreatePatient(&patient))
	require.NotZero(t, patient.ID)
	return patient
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	ds := createDatabase(t)

	createTestUser(t, ds, "alice")

	dup := User{Username: "alice", CredentialHash: "$2a$10$otherhashotherhashother"}
	err := ds.CreateUser(&dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestGetUserByUsername(t *testing.T) {
	ds := createDatabase(t)

	created := createTestUser(t, ds, "alice")

	user, err := ds.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = ds.GetUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateAndListPatients(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	createTestPatient(t, ds, alice.ID, "Jane Doe")

	patients, err := ds.ListPatients(alice.ID)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Jane Doe", patients[0].Name)
	assert.Equal(t, "01-01-1990", patients[0].DateOfBirth)
	assert.Equal(t, "jane@x.com", patients[0].Email)
}

func TestListPatientsOwnershipIsolation(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	bob := createTestUser(t, ds, "bob")
	createTestPatient(t, ds, alice.ID, "Jane Doe")

	bobPatients, err := ds.ListPatients(bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobPatients, "patients of one user must not be visible to another")

	alicePatients, err := ds.ListPatients(alice.ID)
	require.NoError(t, err)
	assert.Len(t, alicePatients, 1)
}

func TestCreatePatientRequiresOwner(t *testing.T) {
	ds := createDatabase(t)

	patient := Patient{Name: "Orphan"}
	err := ds.CreatePatient(&patient)
	require.Error(t, err)
}

func TestSearchPatients(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	bob := createTestUser(t, ds, "bob")
	createTestPatient(t, ds, alice.ID, "Jane Doe")
	createTestPatient(t, ds, alice.ID, "John Smith")
	createTestPatient(t, ds, bob.ID, "Janet Jones")

	tests := []struct {
		name      string
		userID    uint
		substring string
		want      []string
	}{
		{"case insensitive substring", alice.ID, "jane", []string{"Jane Doe"}},
		{"mid-name match", alice.ID, "oe", []string{"Jane Doe"}},
		{"multiple matches", alice.ID, "o", []string{"Jane Doe", "John Smith"}},
		{"scoped to owner", bob.ID, "jane", []string{"Janet Jones"}},
		{"no match is empty not error", alice.ID, "zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patients, err := ds.SearchPatients(tt.userID, tt.substring)
			require.NoError(t, err)
			var names []string
			for i := range patients {
				names = append(names, patients[i].Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFindPatientByName(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	created := createTestPatient(t, ds, alice.ID, "Jane Doe")

	patient, err := ds.FindPatientByName(alice.ID, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, created.ID, patient.ID)

	// exact match only, substring lookups go through SearchPatients
	_, err = ds.FindPatientByName(alice.ID, "Jane")
	assert.ErrorIs(t, err, ErrNotFound)
}

func saveTestRecord(t *testing.T, ds Interface, patientID uint, path string, detections []Detection) ImagingRecord {
	t.Helper()
	record := ImagingRecord{
		PatientID:   patientID,
		StoragePath: path,
		Detections:  detections,
	}
	require.NoError(t, ds.SaveImagingRecord(&record))
	require.NotZero(t, record.ID)
	return record
}

func TestSaveAndGetImagingRecord(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	patient := createTestPatient(t, ds, alice.ID, "Jane Doe")

	detections := []Detection{
		{ClassID: 1, Confidence: 0.82, X1: 10, Y1: 10, X2: 50, Y2: 60},
	}
	saved := saveTestRecord(t, ds, patient.ID, "data/xrays/1/tooth.png", detections)

	record, err := ds.GetImagingRecord(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, record.PatientID)
	assert.Equal(t, "data/xrays/1/tooth.png", record.StoragePath)
	require.Len(t, record.Detections, 1)
	assert.Equal(t, 1, record.Detections[0].ClassID)
	assert.InDelta(t, 0.82, record.Detections[0].Confidence, 1e-9)
	assert.InDelta(t, 40.0, record.Detections[0].Width(), 1e-9)
	assert.InDelta(t, 50.0, record.Detections[0].Height(), 1e-9)
}

func TestListImagingRecordsMostRecentFirst(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	patient := createTestPatient(t, ds, alice.ID, "Jane Doe")

	first := saveTestRecord(t, ds, patient.ID, "data/xrays/1/a.png", nil)
	second := saveTestRecord(t, ds, patient.ID, "data/xrays/1/b.png", nil)
	third := saveTestRecord(t, ds, patient.ID, "data/xrays/1/c.png", nil)

	records, err := ds.ListImagingRecords(patient.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, third.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
	assert.Equal(t, first.ID, records[2].ID)
}

func TestDeletePatientCascades(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	patient := createTestPatient(t, ds, alice.ID, "Jane Doe")
	record := saveTestRecord(t, ds, patient.ID, "data/xrays/1/tooth.png", nil)

	require.NoError(t, ds.DeletePatient(patient.ID))

	_, err := ds.GetPatient(patient.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ds.GetImagingRecord(record.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err := ds.ListImagingRecords(patient.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	patients, err := ds.ListPatients(alice.ID)
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestDeletePatientMissingIsNoOp(t *testing.T) {
	ds := createDatabase(t)

	assert.NoError(t, ds.DeletePatient(12345))
}

func TestCountImagingRecords(t *testing.T) {
	ds := createDatabase(t)

	alice := createTestUser(t, ds, "alice")
	patient := createTestPatient(t, ds, alice.ID, "Jane Doe")

	count, err := ds.CountImagingRecords(patient.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	saveTestRecord(t, ds, patient.ID, "data/xrays/1/a.png", nil)
	saveTestRecord(t, ds, patient.ID, "data/xrays/1/b.png", nil)

	count, err = ds.CountImagingRecords(patient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
