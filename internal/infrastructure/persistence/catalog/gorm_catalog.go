// Package catalog reads the quest and task catalog with GORM.
// The catalog is read-only for the engine; rows are maintained by the
// content tooling and created by the postgres migrations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// Config holds the catalog connection settings.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
}

// Open connects GORM to PostgreSQL.
func Open(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog database instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// GormCatalog implements quest.Catalog and task.Catalog.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a catalog over an open connection.
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// GetQuest returns a quest by ID.
func (c *GormCatalog) GetQuest(ctx context.Context, questID string) (*quest.Quest, error) {
	var m QuestModel
	err := c.db.WithContext(ctx).Where("quest_id = ?", questID).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrQuestNotFound
		}
		return nil, catalogError("GetQuest", err)
	}
	q := m.ToDomain()
	return &q, nil
}

// ListQuests returns quests matching the filter, ordered by ID.
// DescriptionContains is a case-sensitive substring match.
func (c *GormCatalog) ListQuests(ctx context.Context, filter quest.Filter) ([]quest.Quest, error) {
	tx := c.db.WithContext(ctx).Model(&QuestModel{})
	if filter.Type != "" {
		tx = tx.Where("type = ?", string(filter.Type))
	}
	if filter.DescriptionContains != "" {
		tx = tx.Where("strpos(description, ?) > 0", filter.DescriptionContains)
	}
	if len(filter.IDs) > 0 {
		tx = tx.Where("quest_id IN ?", filter.IDs)
	}

	var models []QuestModel
	if err := tx.Order("quest_id ASC").Find(&models).Error; err != nil {
		return nil, catalogError("ListQuests", err)
	}

	out := make([]quest.Quest, 0, len(models))
	for _, m := range models {
		out = append(out, m.ToDomain())
	}
	// Database collation may differ from byte order.
	quest.SortByID(out)
	return out, nil
}

// GetTask returns a task by ID.
func (c *GormCatalog) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var m TaskModel
	err := c.db.WithContext(ctx).Where("task_id = ?", taskID).Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrTaskNotFound
		}
		return nil, catalogError("GetTask", err)
	}
	t := m.ToDomain()
	return &t, nil
}

// UpsertQuest writes a quest. Used by catalog seeding.
func (c *GormCatalog) UpsertQuest(ctx context.Context, q quest.Quest) error {
	if err := q.Validate(); err != nil {
		return err
	}
	m := QuestModel{
		QuestID:               q.ID,
		Title:                 q.Title,
		Description:           q.Description,
		Points:                q.Points,
		Type:                  string(q.Type),
		TotalAmountToComplete: q.TotalAmountToComplete,
	}
	return catalogError("UpsertQuest", c.db.WithContext(ctx).Save(&m).Error)
}

// UpsertTask writes a task. Used by catalog seeding.
func (c *GormCatalog) UpsertTask(ctx context.Context, t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m := TaskModel{
		TaskID:                            t.ID,
		Title:                             t.Title,
		Description:                       t.Description,
		Points:                            t.Points,
		QuestContributionAmountOnComplete: t.QuestContribution,
		AssociatedQuestID:                 t.QuestID,
	}
	return catalogError("UpsertTask", c.db.WithContext(ctx).Save(&m).Error)
}

func catalogError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shared.WrapError("catalog", op, shared.ErrStorageUnavailable, "catalog unavailable", err)
	}
	return fmt.Errorf("catalog: %s: %w", op, err)
}

var (
	_ quest.Catalog = (*GormCatalog)(nil)
	_ task.Catalog  = (*GormCatalog)(nil)
)
