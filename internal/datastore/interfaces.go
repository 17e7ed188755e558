// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/errors"
)

// Sentinel errors surfaced by store operations. Callers match these with
// errors.Is regardless of the underlying database engine.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.NewStd("datastore: not found")
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.NewStd("datastore: username already taken")
)

// Interface abstracts the underlying database implementation and defines
// the operations the rest of the application is allowed to perform.
type Interface interface {
	Open() error
	Close() error

	// users
	CreateUser(user *User) error
	GetUser(id uint) (User, error)
	GetUserByUsername(username string) (User, error)

	// patients, scoped to the owning user where the operation reads
	CreatePatient(patient *Patient) error
	GetPatient(id uint) (Patient, error)
	ListPatients(userID uint) ([]Patient, error)
	FindPatientByName(userID uint, name string) (Patient, error)
	SearchPatients(userID uint, substring string) ([]Patient, error)
	DeletePatient(id uint) error

	// imaging records
	SaveImagingRecord(record *ImagingRecord) error
	GetImagingRecord(id uint) (ImagingRecord, error)
	ListImagingRecords(patientID uint) ([]ImagingRecord, error)
	CountImagingRecords(patientID uint) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided settings.
// Exactly one backend is selected; validation in conf guarantees at least
// one output is enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// CreateUser inserts a new user row. A unique constraint violation on the
// username is translated to ErrDuplicateUsername.
func (ds *DataStore) CreateUser(user *User) error {
	if err := ds.DB.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("creating user %q: %w", user.Username, ErrDuplicateUsername)
		}
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_user").
			Build()
	}
	return nil
}

// GetUser retrieves a user by its id.
func (ds *DataStore) GetUser(id uint) (User, error) {
	var user User
	if err := ds.DB.First(&user, id).Error; err != nil {
		return User{}, translateGetError(err, "get_user", id)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by its unique username.
func (ds *DataStore) GetUserByUsername(username string) (User, error) {
	var user User
	if err := ds.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return User{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_user_by_username").
			Build()
	}
	return user, nil
}

// CreatePatient inserts a new patient row owned by patient.UserID.
func (ds *DataStore) CreatePatient(patient *Patient) error {
	if patient.UserID == 0 {
		return errors.Newf("patient requires an owning user").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ds.DB.Create(patient).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_patient").
			Build()
	}
	return nil
}

// GetPatient retrieves a patient by its id. Ownership checks are performed
// by the caller against Patient.UserID.
func (ds *DataStore) GetPatient(id uint) (Patient, error) {
	var patient Patient
	if err := ds.DB.First(&patient, id).Error; err != nil {
		return Patient{}, translateGetError(err, "get_patient", id)
	}
	return patient, nil
}

// ListPatients returns all patients owned by the given user in insertion order.
func (ds *DataStore) ListPatients(userID uint) ([]Patient, error) {
	var patients []Patient
	if err := ds.DB.Where("user_id = ?", userID).Order("id ASC").Find(&patients).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_patients").
			Build()
	}
	return patients, nil
}

// FindPatientByName returns the first patient owned by the given user with
// an exact name match. Names are not unique, so callers that already hold a
// patient id must use GetPatient instead.
func (ds *DataStore) FindPatientByName(userID uint, name string) (Patient, error) {
	var patient Patient
	err := ds.DB.Where("user_id = ? AND name = ?", userID, name).First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Patient{}, fmt.Errorf("patient %q: %w", name, ErrNotFound)
		}
		return Patient{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "find_patient_by_name").
			Build()
	}
	return patient, nil
}

// SearchPatients performs a case-insensitive substring match over patient
// names owned by the given user. An empty result is not an error.
func (ds *DataStore) SearchPatients(userID uint, substring string) ([]Patient, error) {
	var patients []Patient
	pattern := "%" + strings.ToLower(substring) + "%"
	err := ds.DB.Where("user_id = ? AND LOWER(name) LIKE ?", userID, pattern).
		Order("id ASC").
		Find(&patients).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "search_patients").
			Build()
	}
	return patients, nil
}

// DeletePatient removes a patient and all of its imaging records in a
// single transaction. Deleting a patient that does not exist is a no-op.
func (ds *DataStore) DeletePatient(id uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", id).Delete(&ImagingRecord{}).Error; err != nil {
			return fmt.Errorf("deleting imaging records for patient %d: %w", id, err)
		}
		if err := tx.Delete(&Patient{}, id).Error; err != nil {
			return fmt.Errorf("deleting patient %d: %w", id, err)
		}
		return nil
	})
}

// SaveImagingRecord stores an imaging record together with its detection
// sequence as a single transaction.
func (ds *DataStore) SaveImagingRecord(record *ImagingRecord) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(record).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_imaging_record").
			Context("patient_id", record.PatientID).
			Build()
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetImagingRecord retrieves an imaging record by its id.
func (ds *DataStore) GetImagingRecord(id uint) (ImagingRecord, error) {
	var record ImagingRecord
	if err := ds.DB.First(&record, id).Error; err != nil {
		return ImagingRecord{}, translateGetError(err, "get_imaging_record", id)
	}
	return record, nil
}

// ListImagingRecords returns the imaging history of a patient, most recent
// first. Insertion order is the recency ordering, no timestamp comparison
// is needed.
func (ds *DataStore) ListImagingRecords(patientID uint) ([]ImagingRecord, error) {
	var records []ImagingRecord
	err := ds.DB.Where("patient_id = ?", patientID).
		Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_imaging_records").
			Context("patient_id", patientID).
			Build()
	}
	return records, nil
}

// CountImagingRecords returns the number of imaging records stored for a patient.
func (ds *DataStore) CountImagingRecords(patientID uint) (int64, error) {
	var count int64
	err := ds.DB.Model(&ImagingRecord{}).Where("patient_id = ?", patientID).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count_imaging_records").
			Build()
	}
	return count, nil
}

// translateGetError maps gorm lookup errors to the store's sentinel errors.
func translateGetError(err error, operation string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s id %d: %w", operation, id, ErrNotFound)
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("id", id).
		Build()
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &Patient{}, &ImagingRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
