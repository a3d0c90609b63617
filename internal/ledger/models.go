// Package ledger persists arm/disarm bookkeeping. --arm and --disarm are
// two halves of one transaction that span separate process invocations, so
// the file list, digests, and per-file property map recorded at arm time
// are what a later disarm run consults — and cross-checks against the
// on-disk bytes before restoring anything.
package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one arm invocation.
type Run struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	Status     string    `gorm:"type:varchar(20);default:'armed'"` // armed, disarmed
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	DisarmedAt *time.Time

	Files []ArmedFile `gorm:"foreignKey:RunID"`
}

func (Run) TableName() string { return "runs" }

// ArmedFile is one file swapped by a run.
type ArmedFile struct {
	ID    string `gorm:"primaryKey;type:varchar(36)"`
	RunID string `gorm:"type:varchar(36);index"`

	Path             string `gorm:"type:text;not null"`
	OriginalPath     string `gorm:"type:text"`
	InstrumentedPath string `gorm:"type:text"`

	// Digests validate the swap before disarm touches anything
	BaseDigest  string `gorm:"type:varchar(64)"` // SHA256 of the original bytes
	InstrDigest string `gorm:"type:varchar(64)"` // SHA256 of the instrumented bytes

	// PropertyMap is the file's slice of the emitted property map
	PropertyMap datatypes.JSON `gorm:"type:jsonb"`

	ArmedAt time.Time `gorm:"autoCreateTime"`
}

func (ArmedFile) TableName() string { return "armed_files" }
