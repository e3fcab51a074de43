package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketd/core/events"
	"marketd/core/types"
)

// Entry is one persisted settlement event. The attribute map is stored as a
// JSON document so the schema survives new event fields.
type Entry struct {
	ID         uint      `gorm:"primaryKey"`
	EventType  string    `gorm:"index;size:64"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Entry) TableName() string { return "audit_events" }

type payloadEvent interface {
	Event() *types.Event
}

// Sink persists every emitted event into a relational store for audit and
// indexing. It is fire-and-forget: persistence failures are logged and never
// fail the operation that emitted the event.
type Sink struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects the audit store. Supported drivers are "sqlite" (the
// default) and "postgres"; dsn is a file path for sqlite and a connection
// string for postgres.
func Open(driver, dsn string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "marketd_audit.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open store: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Sink{db: db, log: logger}, nil
}

// Emit persists the event. Implements events.Emitter.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || s.db == nil || evt == nil {
		return
	}
	entry := Entry{EventType: evt.EventType(), CreatedAt: time.Now().UTC()}
	if wrapper, ok := evt.(payloadEvent); ok {
		if payload := wrapper.Event(); payload != nil && payload.Attributes != nil {
			raw, err := json.Marshal(payload.Attributes)
			if err != nil {
				s.log.Warn("audit: encode event attributes", "type", entry.EventType, "err", err)
			} else {
				entry.Attributes = string(raw)
			}
		}
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.log.Warn("audit: persist event", "type", entry.EventType, "err", err)
	}
}

// Recent returns the newest entries, most recent first.
func (s *Sink) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Entry
	if err := s.db.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	return entries, nil
}

// CountByType returns how many events of the given type were recorded.
func (s *Sink) CountByType(eventType string) (int64, error) {
	var count int64
	if err := s.db.Model(&Entry{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("audit: count events: %w", err)
	}
	return count, nil
}
