// Package sequence issues lodgement numbers: a per-record-type prefixed,
// zero-padded, strictly increasing identifier assigned once on first save.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const padWidth = 7

// LodgementSequence stores the last issued numeric value per record type.
type LodgementSequence struct {
	RecordType string    `gorm:"primaryKey;type:text"`
	LastValue  int64     `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LodgementSequence) TableName() string { return "lodgement_sequences" }

var (
	ErrInvalidRecordType = errors.New("invalid_record_type")
	ErrInvalidPrefix     = errors.New("invalid_prefix")
)

// Issuer hands out lodgement numbers inside the caller's transaction so a
// rolled-back save never burns a number outside its own transaction, and the
// row lock keeps issuance strictly increasing under concurrency.
type Issuer struct{}

func NewIssuer() *Issuer { return &Issuer{} }

// Next issues the next lodgement number for recordType, e.g. A0000012.
// Numbers are never reused: discarding a record leaves its value consumed.
func (i *Issuer) Next(ctx context.Context, tx *gorm.DB, recordType, prefix string) (string, error) {
	recordType = strings.TrimSpace(recordType)
	if recordType == "" {
		return "", ErrInvalidRecordType
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrInvalidPrefix
	}

	var seq LodgementSequence
	stmt := tx.WithContext(ctx)
	if stmt.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := stmt.Where(&LodgementSequence{RecordType: recordType}).First(&seq).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		floor, err := legacyFloor(ctx, tx, recordType, prefix)
		if err != nil {
			return "", err
		}
		seq = LodgementSequence{RecordType: recordType, LastValue: floor}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	}

	seq.LastValue++
	if err := tx.WithContext(ctx).
		Model(&LodgementSequence{}).
		Where("record_type = ?", recordType).
		Update("last_value", seq.LastValue).Error; err != nil {
		return "", err
	}

	return Format(prefix, seq.LastValue), nil
}

// legacyTables maps a record type to the table scanned when its sequence
// row is first created, so numbering continues past any records that
// predate the sequence table.
var legacyTables = map[string]string{
	"proposal":            "proposals",
	"competitive_process": "competitive_processes",
	"approval":            "approvals",
	"compliance":          "compliances",
	"invoice":             "invoices",
}

// legacyFloor returns the highest numeric suffix already persisted for a
// record type. Suffixes that do not parse are skipped.
func legacyFloor(ctx context.Context, tx *gorm.DB, recordType, prefix string) (int64, error) {
	table, ok := legacyTables[recordType]
	if !ok || !tx.Migrator().HasTable(table) {
		return 0, nil
	}
	var numbers []string
	if err := tx.WithContext(ctx).Table(table).
		Where("lodgement_number LIKE ?", prefix+"%").
		Pluck("lodgement_number", &numbers).Error; err != nil {
		return 0, err
	}
	var floor int64
	for _, number := range numbers {
		value, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
		if err != nil {
			continue
		}
		if value > floor {
			floor = value
		}
	}
	return floor, nil
}

// Format renders a lodgement number from its prefix and numeric value.
func Format(prefix string, value int64) string {
	return fmt.Sprintf("%s%0*d", prefix, padWidth, value)
}
