package tuning

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"fxdesk/internal/backtest"
	"fxdesk/internal/config"
	"fxdesk/internal/market"
)

// WorkerContext 是所有 worker 共享的一次性初始化上下文：
// K 线数据、基础配置和策略 ID 在构建后不再变化，worker 只读。
// 每个组合的可变状态（叠加后的配置、回测 scratch）全部在
// evaluate 内部产生，worker 之间零共享可写状态。
type WorkerContext struct {
	bars       map[string][]market.Bar
	base       *config.Config
	strategyID string
}

// NewWorkerContext 构建共享上下文。tuning.max_bars 生效时
// 在这里一次性截取最近 N 根，之后所有组合看到同一份数据。
func NewWorkerContext(barsBySymbol map[string][]market.Bar, cfg *config.Config) (*WorkerContext, error) {
	strategyID := cfg.Tuning.Strategy
	if _, ok := cfg.Strategies.Params[strategyID]; !ok {
		return nil, &config.OverlayError{Strategy: strategyID, Reason: "strategy not configured"}
	}
	bars := make(map[string][]market.Bar, len(barsBySymbol))
	for sym, series := range barsBySymbol {
		if cfg.Tuning.MaxBars > 0 {
			series = market.TruncateRecent(series, cfg.Tuning.MaxBars)
		}
		bars[sym] = series
	}
	return &WorkerContext{bars: bars, base: cfg, strategyID: strategyID}, nil
}

// Result 是单个组合的评估结果。失败不抛错，而是把原因记在
// Err 里作为结构化结果返回，协调器据此计数并继续。
type Result struct {
	Index     int                `json:"index"` // 网格生成序号
	Combo     Combo              `json:"combo"`
	Scores    map[string]float64 `json:"scores"` // 场景 -> 惩罚后得分
	Trades    map[string]int     `json:"trades"` // 场景 -> 交易笔数
	Composite float64            `json:"composite"`
	Err       string             `json:"err,omitempty"`
}

// Failed 报告该组合是否评估失败。
func (r Result) Failed() bool { return r.Err != "" }

// TradeCount 返回主场景（按规范顺序第一个有记录的场景）的交易数。
func (r Result) TradeCount(scenario string) int { return r.Trades[scenario] }

// evaluate 在指定场景集上评估一个组合。
func (wc *WorkerContext) evaluate(idx int, combo Combo, scenarios []string) Result {
	res := Result{Index: idx, Combo: combo}

	cfg, err := wc.base.Overlay(wc.strategyID, combo)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	report, err := backtest.Run(wc.bars, cfg, wc.strategyID, scenarios)
	if err != nil {
		res.Err = err.Error()
		return res
	}

	res.Scores = make(map[string]float64, len(report.Scenarios))
	res.Trades = make(map[string]int, len(report.Scenarios))
	for _, sc := range report.Scenarios {
		m := report.ByScenario[sc]
		res.Scores[sc] = penalizedScore(m, cfg.Tuning.MinTrades, cfg.Tuning.Penalty)
		res.Trades[sc] = m.Trades
	}
	res.Composite = compositeScore(res.Scores, cfg.Tuning.ScenarioWeights)
	return res
}

// penalizedScore 以盈利因子为基础得分，交易数不足样本门槛时
// 乘惩罚系数压低排名。零亏损的 +Inf 盈利因子折叠成最大浮点数，
// 后续得分、序列化全程保持有限值。
func penalizedScore(m backtest.Metrics, minTrades int, penalty float64) float64 {
	score := m.ProfitFactor
	if math.IsInf(score, 1) {
		score = math.MaxFloat64
	}
	if m.Trades < minTrades {
		score *= penalty
	}
	return score
}

// compositeScore 对各场景得分做加权平均，weights 为空时等权。
// 含 NaN 的得分集返回 NaN。
func compositeScore(scores map[string]float64, weights map[string]float64) float64 {
	var sum, wsum float64
	for _, sc := range backtest.CanonicalScenarioOrder {
		score, ok := scores[sc]
		if !ok {
			continue
		}
		w := 1.0
		if len(weights) > 0 {
			w = weights[sc]
		}
		sum += score * w
		wsum += w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

// runPool 用固定数量的 goroutine 评估全部任务，结果按完成顺序
// 送入 results，由单一消费者排干。jobs 里是组合的网格序号。
func (wc *WorkerContext) runPool(ctx context.Context, workers int, combos []Combo, scenarios []string, onResult func(Result)) error {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	results := make(chan Result)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range combos {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workerGroup, workerCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		workerGroup.Go(func() error {
			for idx := range jobs {
				select {
				case results <- wc.evaluate(idx, combos[idx], scenarios):
				case <-workerCtx.Done():
					return workerCtx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workerGroup.Wait()
		close(results)
	}()

	// 单一消费者：进度统计与聚合都不需要加锁。
	for res := range results {
		onResult(res)
	}
	if err := workerGroup.Wait(); err != nil {
		return err
	}
	return g.Wait()
}
