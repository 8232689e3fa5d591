package backtest

import (
	"math"
	"time"

	"fxdesk/internal/config"
	"fxdesk/internal/feature"
	"fxdesk/internal/market"
	"fxdesk/internal/signal"
)

// 平仓原因。
const (
	ExitSL   = "SL"
	ExitTP   = "TP"
	ExitTime = "TIME"
	ExitEOD  = "EOD"
)

// Trade 是一笔已完成的交易记录。
type Trade struct {
	Symbol     string      `json:"symbol"`
	Scenario   string      `json:"scenario"`
	Strategy   string      `json:"strategy"`
	Side       signal.Side `json:"side"`
	EntryIndex int         `json:"entry_index"`
	ExitIndex  int         `json:"exit_index"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Qty        float64     `json:"qty"`
	SLPrice    float64     `json:"sl_price"`
	TPPrice    float64     `json:"tp_price"`
	PnLPips    float64     `json:"pnl_pips"`
	PnL        float64     `json:"pnl"`
	ExitReason string      `json:"exit_reason"`
}

// runScenario 在单一品种、单一成本场景下跑完整个序列。
// 约定：信号产生在第 t 根收盘，成交在第 t+1 根开盘；同一时刻
// 每个品种至多一个持仓。冷却状态只在本次调用内有效。
func runScenario(
	bars []market.Bar,
	fs *feature.Set,
	strat signal.Strategy,
	params config.StrategyParams,
	risk config.RiskConfig,
	cm costModel,
	scenarioID string,
) []Trade {
	var trades []Trade
	n := len(bars)
	symbol := fs.Symbol()
	lastExitIdx := -1

	for t := 0; t+1 < n; t++ {
		intent := strat.Evaluate(fs, params, t, lastExitIdx)
		if intent.Side == signal.Flat {
			continue
		}

		// 入场成本按成交根的 TR 与信号时 ATR 的比值计滑点。
		atr, ok := fs.Value(feature.ATR, t)
		if !ok || atr <= 0 {
			continue
		}
		fill := t + 1
		entryRatio := trueRange(bars, fill) / atr
		entryCostPips := cm.perSidePips(entryRatio)

		long := intent.Side == signal.Long
		entryPrice := market.ApplyCostPips(symbol, bars[fill].Open, entryCostPips, long)

		slPips := intent.SLPips
		if slPips <= 0 {
			continue
		}
		qty := risk.RBase / slPips

		slPrice := market.ApplyCostPips(symbol, entryPrice, slPips, !long)
		tpPrice := 0.0
		if intent.HasTP() {
			tpPrice = market.ApplyCostPips(symbol, entryPrice, intent.TPPips, long)
		}

		exitIdx, exitPrice, reason := resolveExit(bars, fill, long, slPrice, tpPrice, risk.MaxHoldBars)
		// 出场成本按平仓根的 TR 与前一根 ATR 重算。
		exitRatio := entryRatio
		if exitATR, ok := fs.Value(feature.ATR, exitIdx-1); ok && exitATR > 0 {
			exitRatio = trueRange(bars, exitIdx) / exitATR
		}
		exitPrice = market.ApplyCostPips(symbol, exitPrice, cm.perSidePips(exitRatio), !long)

		pnlPips := market.ToPips(symbol, exitPrice-entryPrice)
		if !long {
			pnlPips = -pnlPips
		}

		trades = append(trades, Trade{
			Symbol:     symbol,
			Scenario:   scenarioID,
			Strategy:   intent.Strategy,
			Side:       intent.Side,
			EntryIndex: fill,
			ExitIndex:  exitIdx,
			EntryTime:  bars[fill].Time,
			ExitTime:   bars[exitIdx].Time,
			EntryPrice: entryPrice,
			ExitPrice:  exitPrice,
			Qty:        qty,
			SLPrice:    slPrice,
			TPPrice:    tpPrice,
			PnLPips:    pnlPips,
			PnL:        qty * pnlPips,
			ExitReason: reason,
		})

		lastExitIdx = exitIdx
		// 持仓期间不再评估信号。
		t = exitIdx
	}
	return trades
}

// resolveExit 从入场后的第一根起逐根判断离场：先看止损（含
// 跳空），再看止盈，同根同时触及按止损处理；持仓根数到达上限
// 按收盘平仓；数据走完仍在场内则按末根收盘平仓。
func resolveExit(bars []market.Bar, entryIdx int, long bool, slPrice, tpPrice float64, maxHold int) (int, float64, string) {
	n := len(bars)
	for j := entryIdx + 1; j < n; j++ {
		b := bars[j]
		if long {
			if b.Open <= slPrice {
				return j, b.Open, ExitSL
			}
			if b.Low <= slPrice {
				return j, slPrice, ExitSL
			}
			if tpPrice > 0 {
				if b.Open >= tpPrice {
					return j, b.Open, ExitTP
				}
				if b.High >= tpPrice {
					return j, tpPrice, ExitTP
				}
			}
		} else {
			if b.Open >= slPrice {
				return j, b.Open, ExitSL
			}
			if b.High >= slPrice {
				return j, slPrice, ExitSL
			}
			if tpPrice > 0 {
				if b.Open <= tpPrice {
					return j, b.Open, ExitTP
				}
				if b.Low <= tpPrice {
					return j, tpPrice, ExitTP
				}
			}
		}
		if maxHold > 0 && j-entryIdx >= maxHold {
			return j, b.Close, ExitTime
		}
	}
	last := n - 1
	return last, bars[last].Close, ExitEOD
}

// trueRange 计算第 i 根的真实波幅，首根退化为 High-Low。
func trueRange(bars []market.Bar, i int) float64 {
	b := bars[i]
	hl := b.High - b.Low
	if i == 0 {
		return hl
	}
	prevClose := bars[i-1].Close
	return math.Max(hl, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}
