package store

import (
	"context"

	sw "github.com/filanov/stateswitch"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/net-toolbox/onboarder/internal/model"
)

// DBStore is the sqlite-backed Storage for worker deployments.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore opens (or creates) the sqlite database at path and migrates the
// task table. A single connection with WAL journaling keeps concurrent task
// updates from tripping over sqlite's writer lock.
func NewDBStore(path string) (*DBStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=15000&_synchronous=NORMAL"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening task database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "opening task database")
	}

	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.Task{}); err != nil {
		return nil, errors.Wrap(err, "migrating task table")
	}

	return &DBStore{db: db}, nil
}

func (s *DBStore) Add(ctx context.Context, task model.Task) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(&task).Error, "adding task")
}

func (s *DBStore) ByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task

	err := s.db.WithContext(ctx).First(&task, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(ErrTaskNotFound, id.String())
	}

	if err != nil {
		return nil, errors.Wrap(err, "querying task")
	}

	return &task, nil
}

func (s *DBStore) Update(ctx context.Context, task model.Task) error {
	result := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", task.ID.String()).
		Select("*").
		Omit("id", "created_at").
		Updates(&task)
	if result.Error != nil {
		return errors.Wrap(result.Error, "updating task")
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(ErrTaskNotFound, task.ID.String())
	}

	return nil
}

func (s *DBStore) ByStatus(ctx context.Context, status sw.State) ([]model.Task, error) {
	var tasks []model.Task

	err := s.db.WithContext(ctx).Where("status = ?", string(status)).Find(&tasks).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying tasks by status")
	}

	return tasks, nil
}

func (s *DBStore) Remove(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id.String())
	if result.Error != nil {
		return errors.Wrap(result.Error, "removing task")
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(ErrTaskNotFound, id.String())
	}

	return nil
}

// Close releases the underlying database handle.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
