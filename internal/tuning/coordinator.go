package tuning

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"fxdesk/internal/config"
	"fxdesk/internal/logger"
	"fxdesk/internal/market"
)

// RunSummary 是一次参数搜索的全部产物。
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Strategy       string        `json:"strategy"`
	GridSize       int           `json:"grid_size"`
	Workers        int           `json:"workers"`
	TuneScenario   string        `json:"tune_scenario"`
	TwoStage       bool          `json:"two_stage"`
	Stage1         []Result      `json:"stage1"` // 按名次排列
	TopK           []Result      `json:"top_k"`
	Stage2         []Result      `json:"stage2,omitempty"`
	Stage1Duration time.Duration `json:"stage1_duration_ns"`
	Stage2Duration time.Duration `json:"stage2_duration_ns"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Best 返回最终名次第一的结果（两阶段取 Stage2，单阶段取 TopK）。
func (s *RunSummary) Best() (Result, bool) {
	if len(s.Stage2) > 0 {
		return s.Stage2[0], true
	}
	if len(s.TopK) > 0 {
		return s.TopK[0], true
	}
	return Result{}, false
}

// Coordinator 驱动两阶段参数搜索：阶段一用单一调参场景粗筛
// 全量网格，阶段二只对前 K 名跑全部成本场景并按加权综合分
// 重排。two_stage=false 时退化为单阶段：直接全场景评估全网格。
type Coordinator struct {
	cfg     *config.Config
	wc      *WorkerContext
	tracker *progressTracker
}

func NewCoordinator(barsBySymbol map[string][]market.Bar, cfg *config.Config) (*Coordinator, error) {
	wc, err := NewWorkerContext(barsBySymbol, cfg)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:     cfg,
		wc:      wc,
		tracker: newProgressTracker(cfg.Tuning.ProgressEvery, cfg.Tuning.ShowETA),
	}, nil
}

// Progress 返回当前进度快照，供 HTTP 接口轮询。
func (c *Coordinator) Progress() ProgressSnapshot { return c.tracker.Snapshot() }

// Run 执行完整搜索。单个组合失败只计数不中断，全局性错误
// （如 ctx 取消）才返回。
func (c *Coordinator) Run(ctx context.Context) (*RunSummary, error) {
	t := c.cfg.Tuning
	combos := BuildGrid(t.Grid)
	summary := &RunSummary{
		RunID:        uuid.NewString(),
		Strategy:     t.Strategy,
		GridSize:     len(combos),
		Workers:      t.Workers,
		TuneScenario: t.TuneScenario,
		TwoStage:     t.TwoStage,
		StartedAt:    time.Now(),
	}
	logger.Infof("tuning run %s: grid=%d workers=%d tune_scenario=%s two_stage=%v",
		summary.RunID, summary.GridSize, summary.Workers, t.TuneScenario, t.TwoStage)

	stage1Scenarios := []string{t.TuneScenario}
	if !t.TwoStage {
		stage1Scenarios = nil // 单阶段：直接全场景
	}

	stage1Start := time.Now()
	c.tracker.StartStage("stage1", len(combos))
	stage1 := make([]Result, 0, len(combos))
	err := c.wc.runPool(ctx, t.Workers, combos, stage1Scenarios, func(res Result) {
		c.tracker.Record(res)
		stage1 = append(stage1, res)
	})
	c.tracker.FinishStage()
	if err != nil {
		return nil, err
	}
	summary.Stage1Duration = time.Since(stage1Start)

	for _, res := range stage1 {
		if res.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	rankResults(stage1, t.TuneScenario)
	summary.Stage1 = stage1
	summary.TopK = topK(stage1, t.TopK)
	logger.Infof("stage1 done in %s: ok=%d failed=%d top_k=%d",
		formatClock(summary.Stage1Duration), summary.Succeeded, summary.Failed, len(summary.TopK))

	if t.TwoStage && len(summary.TopK) > 0 {
		stage2Start := time.Now()
		finalists := make([]Combo, len(summary.TopK))
		for i, res := range summary.TopK {
			finalists[i] = res.Combo
		}
		c.tracker.StartStage("stage2", len(finalists))
		stage2 := make([]Result, 0, len(finalists))
		err := c.wc.runPool(ctx, t.Workers, finalists, nil, func(res Result) {
			c.tracker.Record(res)
			// 换回原网格序号，保持与阶段一同一套名次回溯键。
			res.Index = summary.TopK[res.Index].Index
			stage2 = append(stage2, res)
		})
		c.tracker.FinishStage()
		if err != nil {
			return nil, err
		}
		summary.Stage2Duration = time.Since(stage2Start)
		// 入围组合在阶段一已计入成功，阶段二失败时改判，
		// 保证成功数加失败数不超过网格规模。
		for _, res := range stage2 {
			if res.Failed() {
				summary.Failed++
				summary.Succeeded--
			}
		}
		rankResults(stage2, t.TuneScenario)
		summary.Stage2 = stage2
		logger.Infof("stage2 done in %s: finalists=%d", formatClock(summary.Stage2Duration), len(stage2))
	}

	summary.FinishedAt = time.Now()
	if best, ok := summary.Best(); ok {
		logger.Infof("best combo (idx=%d): composite=%.4f trades=%v", best.Index, best.Composite, best.Trades)
	}
	return summary, nil
}

// rankResults 原地排序：综合分降序，平分时调参场景交易数多者
// 优先，再平时按网格生成序号。失败与 NaN 结果排在最后。
func rankResults(results []Result, tuneScenario string) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		af, bf := a.Failed() || math.IsNaN(a.Composite), b.Failed() || math.IsNaN(b.Composite)
		if af != bf {
			return !af
		}
		if af {
			return a.Index < b.Index
		}
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Trades[tuneScenario] != b.Trades[tuneScenario] {
			return a.Trades[tuneScenario] > b.Trades[tuneScenario]
		}
		return a.Index < b.Index
	})
}

// topK 取名次前 K 的成功结果。
func topK(ranked []Result, k int) []Result {
	out := make([]Result, 0, k)
	for _, res := range ranked {
		if res.Failed() || math.IsNaN(res.Composite) {
			continue
		}
		out = append(out, res)
		if len(out) == k {
			break
		}
	}
	return out
}
