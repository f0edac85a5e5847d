package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunRecord is one completed run's bookkeeping row.
type RunRecord struct {
	RunID      string
	Task       string
	StartedAt  time.Time
	FinishedAt time.Time
	Planned    int
	Succeeded  int
	Failed     int
	Skipped    int
	Abandoned  int
	FailedKeys []string
}

type runModel struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"size:64;index"`
	Task       string `gorm:"size:64"`
	StartedAt  time.Time
	FinishedAt time.Time
	Planned    int
	Succeeded  int
	Failed     int
	Skipped    int
	Abandoned  int
	FailedKeys datatypes.JSON
	CreatedAt  time.Time
}

func (runModel) TableName() string {
	return "runs"
}

// Store keeps run history in SQLite. Writes are best-effort from the
// caller's point of view; a failed append must never fail the run itself.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("runlog: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Append(rec RunRecord) error {
	keys, err := json.Marshal(rec.FailedKeys)
	if err != nil {
		return err
	}
	model := runModel{
		RunID:      rec.RunID,
		Task:       rec.Task,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Planned:    rec.Planned,
		Succeeded:  rec.Succeeded,
		Failed:     rec.Failed,
		Skipped:    rec.Skipped,
		Abandoned:  rec.Abandoned,
		FailedKeys: datatypes.JSON(keys),
	}
	return s.db.Create(&model).Error
}

func (s *Store) Recent(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []runModel
	if err := s.db.Order("id desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		rec := RunRecord{
			RunID:      m.RunID,
			Task:       m.Task,
			StartedAt:  m.StartedAt,
			FinishedAt: m.FinishedAt,
			Planned:    m.Planned,
			Succeeded:  m.Succeeded,
			Failed:     m.Failed,
			Skipped:    m.Skipped,
			Abandoned:  m.Abandoned,
		}
		if len(m.FailedKeys) > 0 {
			_ = json.Unmarshal(m.FailedKeys, &rec.FailedKeys)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
