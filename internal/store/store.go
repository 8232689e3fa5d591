package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fxdesk/internal/tuning"
)

// RunModel 是一次搜索的元信息行。
type RunModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;uniqueIndex"`
	Strategy       string  `gorm:"column:strategy"`
	GridSize       int     `gorm:"column:grid_size"`
	Workers        int     `gorm:"column:workers"`
	TuneScenario   string  `gorm:"column:tune_scenario"`
	TwoStage       bool    `gorm:"column:two_stage"`
	Succeeded      int     `gorm:"column:succeeded"`
	Failed         int     `gorm:"column:failed"`
	Stage1Seconds  float64 `gorm:"column:stage1_seconds"`
	Stage2Seconds  float64 `gorm:"column:stage2_seconds"`
	StartedAtUnix  int64   `gorm:"column:started_at"`
	FinishedAtUnix int64   `gorm:"column:finished_at"`
}

func (RunModel) TableName() string { return "tuning_runs" }

// ResultModel 是某阶段中单个组合的结果行，组合与得分按 JSON
// 文本落库，rank 为该阶段内名次（从 1 起）。
type ResultModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	RunID     string  `gorm:"column:run_id;index"`
	Stage     string  `gorm:"column:stage;index"`
	Rank      int     `gorm:"column:rank"`
	GridIndex int     `gorm:"column:grid_index"`
	Combo     string  `gorm:"column:combo"`
	Scores    string  `gorm:"column:scores"`
	Trades    string  `gorm:"column:trades"`
	Composite float64 `gorm:"column:composite"`
	Err       string  `gorm:"column:err"`
}

func (ResultModel) TableName() string { return "tuning_results" }

// Store 把搜索结果落到 sqlite。
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}, &ResultModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSummary 在单个事务里写入元信息与全部阶段结果。
func (s *Store) SaveSummary(sum *tuning.RunSummary) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		run := RunModel{
			RunID:          sum.RunID,
			Strategy:       sum.Strategy,
			GridSize:       sum.GridSize,
			Workers:        sum.Workers,
			TuneScenario:   sum.TuneScenario,
			TwoStage:       sum.TwoStage,
			Succeeded:      sum.Succeeded,
			Failed:         sum.Failed,
			Stage1Seconds:  sum.Stage1Duration.Seconds(),
			Stage2Seconds:  sum.Stage2Duration.Seconds(),
			StartedAtUnix:  sum.StartedAt.Unix(),
			FinishedAtUnix: sum.FinishedAt.Unix(),
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if err := saveStage(tx, sum.RunID, "stage1", sum.Stage1); err != nil {
			return err
		}
		if err := saveStage(tx, sum.RunID, "top_k", sum.TopK); err != nil {
			return err
		}
		return saveStage(tx, sum.RunID, "stage2", sum.Stage2)
	})
}

func saveStage(tx *gorm.DB, runID, stage string, results []tuning.Result) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]ResultModel, 0, len(results))
	for rank, res := range results {
		rows = append(rows, ResultModel{
			RunID:     runID,
			Stage:     stage,
			Rank:      rank + 1,
			GridIndex: res.Index,
			Combo:     mustJSON(res.Combo),
			Scores:    mustJSON(res.Scores),
			Trades:    mustJSON(res.Trades),
			Composite: sanitizeFloat(res.Composite),
			Err:       res.Err,
		})
	}
	return tx.CreateInBatches(rows, 200).Error
}

// LoadRun 读回一次搜索的元信息，主要给测试和结果接口用。
func (s *Store) LoadRun(runID string) (*RunModel, error) {
	var run RunModel
	if err := s.db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// LoadStage 按名次读回某阶段的结果行。
func (s *Store) LoadStage(runID, stage string) ([]ResultModel, error) {
	var rows []ResultModel
	err := s.db.Where("run_id = ? AND stage = ?", runID, stage).Order("rank asc").Find(&rows).Error
	return rows, err
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// sanitizeFloat 把 Inf/NaN 折叠成可落库的值，Inf 用一个极大数
// 占位，保持排序语义。
func sanitizeFloat(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v > 1e308:
		return 1e308
	case v < -1e308:
		return -1e308
	}
	return v
}
