package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type sqliteRow struct {
	ID           string `gorm:"primaryKey"`
	SessionID    string `gorm:"index;not null"`
	Question     string `gorm:"not null"`
	DocumentName string
	DocumentSize int64
	Outcome      string `gorm:"not null"`
	Error        string
	DurationMS   int64
	CreatedAt    time.Time
}

// SQLiteRecorder keeps entries in a local database file for single-node deployments.
type SQLiteRecorder struct {
	db    *gorm.DB
	table string
}

// NewSQLite opens (or creates) the database at path and migrates table.
func NewSQLite(ctx context.Context, path, table string) (*SQLiteRecorder, error) {
	if table == "" {
		return nil, fmt.Errorf("history table required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&sqliteRow{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("migrate %s: %w", table, err)
	}
	return &SQLiteRecorder{db: db, table: table}, nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, entry Entry) error {
	e := normalize(entry)
	row := sqliteRow{
		ID:           e.ID.String(),
		SessionID:    e.SessionID,
		Question:     e.Question,
		DocumentName: e.DocumentName,
		DocumentSize: e.DocumentSize,
		Outcome:      string(e.Outcome),
		Error:        e.Error,
		DurationMS:   e.Duration.Milliseconds(),
		CreatedAt:    e.CreatedAt,
	}
	return r.db.WithContext(ctx).Table(r.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *SQLiteRecorder) Close() error {
	return closeGorm(r.db)
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
