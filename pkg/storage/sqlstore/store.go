// Package sqlstore persists events in a relational database through GORM.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gitfeed/pkg/events"
	"gitfeed/pkg/storage"
)

// Config selects the database and table for the events store.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.EventStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	ID         string    `gorm:"column:id;primaryKey;size:64"`
	RequestID  string    `gorm:"column:request_id;size:128"`
	Author     string    `gorm:"column:author;size:255;not null"`
	Action     string    `gorm:"column:action;size:32;not null"`
	FromBranch string    `gorm:"column:from_branch;size:255"`
	ToBranch   string    `gorm:"column:to_branch;size:255"`
	Repository string    `gorm:"column:repository;size:255"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

// Open creates a GORM-backed events store.
func Open(cfg Config) (*Store, error) {
	driver := NormalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "events"
	}
	store := &Store{db: gormDB, table: table}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts the record.
func (s *Store) Save(ctx context.Context, record *events.Event) error {
	if s == nil || s.db == nil {
		return storage.ErrNotInitialized
	}
	if err := storage.Prepare(record); err != nil {
		return err
	}
	data := toRow(*record)
	if err := s.tableDB().WithContext(ctx).Create(&data).Error; err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	if s == nil || s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	if limit <= 0 {
		return []events.Event{}, nil
	}
	var data []row
	err := s.tableDB().
		WithContext(ctx).
		Order("occurred_at desc").
		Order("received_at desc").
		Limit(limit).
		Find(&data).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	records := make([]events.Event, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record events.Event) row {
	return row{
		ID:         record.ID,
		RequestID:  record.RequestID,
		Author:     record.Author,
		Action:     string(record.Action),
		FromBranch: record.FromBranch,
		ToBranch:   record.ToBranch,
		Repository: record.Repository,
		OccurredAt: record.Timestamp,
		ReceivedAt: record.ReceivedAt,
	}
}

func fromRow(data row) events.Event {
	return events.Event{
		ID:         data.ID,
		RequestID:  data.RequestID,
		Author:     data.Author,
		Action:     events.Action(data.Action),
		FromBranch: data.FromBranch,
		ToBranch:   data.ToBranch,
		Repository: data.Repository,
		Timestamp:  data.OccurredAt.UTC(),
		ReceivedAt: data.ReceivedAt.UTC(),
	}
}

// NormalizeDriver maps driver aliases to the names Open understands, or "" when unknown.
func NormalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
