package backtest

import (
	"encoding/json"
	"math"
	"sort"
)

// Metrics 是一组交易的绩效汇总，全部为纯函数计算，
// 不依赖任何外部状态。
type Metrics struct {
	Trades        int     `json:"trades"`
	NetPnL        float64 `json:"net_pnl"`
	Expectancy    float64 `json:"expectancy"`
	ProfitFactor  float64 `json:"profit_factor"`
	WinRate       float64 `json:"win_rate"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	CVaR95        float64 `json:"cvar_95"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`
}

// ComputeMetrics 按交易完成顺序汇总绩效。
// 空交易集返回零值指标。
func ComputeMetrics(trades []Trade) Metrics {
	m := Metrics{Trades: len(trades)}
	if len(trades) == 0 {
		return m
	}

	var grossWin, grossLoss float64
	wins := 0
	winStreak, lossStreak := 0, 0
	equity, peak := 0.0, 0.0

	pnls := make([]float64, len(trades))
	for i, tr := range trades {
		pnl := tr.PnL
		pnls[i] = pnl
		m.NetPnL += pnl

		if pnl > 0 {
			grossWin += pnl
			wins++
			winStreak++
			lossStreak = 0
		} else if pnl < 0 {
			grossLoss += -pnl
			lossStreak++
			winStreak = 0
		} else {
			winStreak, lossStreak = 0, 0
		}
		if winStreak > m.MaxWinStreak {
			m.MaxWinStreak = winStreak
		}
		if lossStreak > m.MaxLossStreak {
			m.MaxLossStreak = lossStreak
		}

		equity += pnl
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	m.Expectancy = m.NetPnL / float64(len(trades))
	m.WinRate = float64(wins) / float64(len(trades))
	m.ProfitFactor = profitFactor(grossWin, grossLoss)
	m.CVaR95 = cvar95(pnls)
	return m
}

// MarshalJSON 把 +Inf 的盈利因子折叠成最大浮点数，
// encoding/json 不接受非有限值。
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	a := alias(m)
	if math.IsInf(a.ProfitFactor, 1) {
		a.ProfitFactor = math.MaxFloat64
	}
	return json.Marshal(a)
}

// profitFactor = 毛利/毛损。没有亏损时：有盈利为 +Inf，
// 没有任何非零交易为 0。
func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossWin / grossLoss
}

// cvar95 是最差 5% 交易的平均损益（期望损失口径，通常为负数）。
func cvar95(pnls []float64) float64 {
	sorted := append([]float64(nil), pnls...)
	sort.Float64s(sorted)
	tail := int(math.Ceil(float64(len(sorted)) * 0.05))
	if tail < 1 {
		tail = 1
	}
	sum := 0.0
	for _, v := range sorted[:tail] {
		sum += v
	}
	return sum / float64(tail)
}
