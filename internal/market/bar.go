package market

import (
	"fmt"
	"time"
)

// Bar 是单个品种在固定周期上的一根 OHLC K 线。
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// ContractError 表示 K 线序列不满足结构契约（§结构性错误），
// 在任何特征计算之前抛出，该次回测直接失败。
type ContractError struct {
	Symbol string
	Reason string
}

func (e *ContractError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("bar contract violated: %s", e.Reason)
	}
	return fmt.Sprintf("bar contract violated (%s): %s", e.Symbol, e.Reason)
}

// ValidateSeries 校验时间戳严格递增、价格为正、长度满足最小窗口。
func ValidateSeries(symbol string, bars []Bar, minLen int) error {
	if len(bars) < minLen {
		return &ContractError{Symbol: symbol, Reason: fmt.Sprintf("need at least %d bars, got %d", minLen, len(bars))}
	}
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return &ContractError{Symbol: symbol, Reason: fmt.Sprintf("non-positive price at index %d", i)}
		}
		if b.High < b.Low {
			return &ContractError{Symbol: symbol, Reason: fmt.Sprintf("high < low at index %d", i)}
		}
		if i > 0 && !bars[i].Time.After(bars[i-1].Time) {
			return &ContractError{Symbol: symbol, Reason: fmt.Sprintf("timestamps not strictly increasing at index %d", i)}
		}
	}
	return nil
}

// TruncateRecent 仅保留最近 n 根 K 线（n<=0 表示不截断）。
func TruncateRecent(bars []Bar, n int) []Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

// Closes 抽取收盘价序列。
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs 抽取最高价序列。
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows 抽取最低价序列。
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
