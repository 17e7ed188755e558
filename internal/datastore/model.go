// model.go this code defines the data model for the application
package datastore

import "time"

// User represents an account that owns patients. The credential is stored
// as a bcrypt hash, never in plain text.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"uniqueIndex;not null"`
	CredentialHash string `gorm:"not null"`
	CreatedAt      time.Time
	Patients       []Patient `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Patient represents a single patient owned by exactly one user. All reads
// and writes must be scoped to the owning user.
type Patient struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index:idx_patients_user;not null"`
	Name        string `gorm:"index:idx_patients_name;not null"`
	DateOfBirth string // optional, dd-MM-yyyy, empty when not provided
	Email       string // optional, empty when not provided
	CreatedAt   time.Time
	Records     []ImagingRecord `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
}

// Detection is one bounding box, class and confidence output by the
// detector for a single image. Box coordinates are source image pixels
// with x2 >= x1 and y2 >= y1. The class label is derived at render time
// from the class id and is not stored.
type Detection struct {
	ClassID    int     `json:"class"`
	Confidence float64 `json:"conf"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// ImagingRecord is the persisted association between a patient, a stored
// image and its detection sequence. Records are immutable once created and
// removed only by cascading patient deletion. StoragePath points at the
// copied image under the patient-scoped storage directory, and the copy is
// guaranteed to exist before the record is committed.
type ImagingRecord struct {
	ID          uint        `gorm:"primaryKey"`
	PatientID   uint        `gorm:"index:idx_imaging_records_patient;not null"`
	StoragePath string      `gorm:"not null"`
	Detections  []Detection `gorm:"column:detections_json;serializer:json"`
	CreatedAt   time.Time
}

// Width returns the box width of a detection.
func (d *Detection) Width() float64 { return d.X2 - d.X1 }

// Height returns the box height of a detection.
func (d *Detection) Height() float64 { return d.Y2 - d.Y1 }
