package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger is the arm/disarm record store.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger { return &Ledger{db: db} }

// FileRecord is one file about to be armed.
type FileRecord struct {
	Path         string
	Original     []byte
	Instrumented []byte
	PropertyMap  any // the file's property records, serialized as JSON
}

// RecordArm persists one arm run and its files, returning the run id.
func (l *Ledger) RecordArm(files []FileRecord) (string, error) {
	runID := uuid.NewString()
	run := Run{ID: runID, Status: "armed"}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		for _, f := range files {
			var pm datatypes.JSON
			if f.PropertyMap != nil {
				raw, err := json.Marshal(f.PropertyMap)
				if err != nil {
					return fmt.Errorf("marshal property map for %s: %w", f.Path, err)
				}
				pm = raw
			}
			rec := ArmedFile{
				ID:               uuid.NewString(),
				RunID:            runID,
				Path:             f.Path,
				OriginalPath:     f.Path + ".original",
				InstrumentedPath: f.Path + ".instrumented",
				BaseDigest:       Digest(f.Original),
				InstrDigest:      Digest(f.Instrumented),
				PropertyMap:      pm,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("record arm: %w", err)
	}
	return runID, nil
}

// ActiveRun returns the most recent run still armed, with its files, or
// nil when nothing is armed.
func (l *Ledger) ActiveRun() (*Run, error) {
	var run Run
	err := l.db.Preload("Files").
		Where("status = ?", "armed").
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active run: %w", err)
	}
	return &run, nil
}

// VerifyOriginal cross-checks the parked .original bytes against the
// digest recorded at arm time; disarm refuses to restore a file whose
// backup drifted.
func (l *Ledger) VerifyOriginal(f ArmedFile, parked []byte) error {
	if got := Digest(parked); got != f.BaseDigest {
		return fmt.Errorf("original of %s drifted since arm: digest %s, recorded %s",
			f.Path, got[:12], f.BaseDigest[:12])
	}
	return nil
}

// MarkDisarmed closes out a run.
func (l *Ledger) MarkDisarmed(runID string) error {
	now := time.Now()
	res := l.db.Model(&Run{}).
		Where("id = ? AND status = ?", runID, "armed").
		Updates(map[string]any{"status": "disarmed", "disarmed_at": &now})
	if res.Error != nil {
		return fmt.Errorf("mark disarmed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s is not armed", runID)
	}
	return nil
}
