package feature

import (
	"fmt"

	"fxdesk/internal/market"

	talib "github.com/markcheno/go-talib"
)

// 特征名（与信号引擎约定的键）。
const (
	Close       = "close"
	High        = "high"
	Low         = "low"
	EMAFast     = "ema_fast"
	EMASlow     = "ema_slow"
	ATR         = "atr"      // 价格单位
	ATRPips     = "atr_pips" // 点数单位
	ADX         = "adx"
	ChannelHigh = "channel_high" // 前移一根后的滚动最高
	ChannelLow  = "channel_low"  // 前移一根后的滚动最低
)

// Params 控制单策略所需特征的窗口参数。
type Params struct {
	EMAFast        int
	EMASlow        int
	ATRPeriod      int
	ADXPeriod      int
	BreakoutWindow int
}

// Set 是一个品种的全部预计算特征，构建完成后只读，
// 同一份实例被所有参数组合共享。
type Set struct {
	symbol string
	length int
	series map[string]Series
	regime []string
}

// NewSetFromSeries 直接用现成序列拼一个特征集，跳过特征计算，
// 供信号层测试和外部特征注入使用。regime 为空时整段按预热处理。
func NewSetFromSeries(symbol string, length int, series map[string]Series, regime []string) *Set {
	return &Set{symbol: symbol, length: length, series: series, regime: regime}
}

func (s *Set) Symbol() string { return s.symbol }
func (s *Set) Len() int       { return s.length }

// Series 按名取特征序列。
func (s *Set) Series(name string) (Series, bool) {
	sr, ok := s.series[name]
	return sr, ok
}

// Value 按名取第 i 根的值；序列不存在或未定义时 ok=false。
func (s *Set) Value(name string, i int) (float64, bool) {
	sr, ok := s.series[name]
	if !ok {
		return 0, false
	}
	return sr.At(i)
}

// Regime 返回第 i 根的波动状态注记，格式 VOL=<LOW|MID|HIGH>|SPIKE=<0|1>，
// 预热区为 VOL=UNKNOWN|SPIKE=0。
func (s *Set) Regime(i int) string {
	if i < 0 || i >= len(s.regime) {
		return "VOL=UNKNOWN|SPIKE=0"
	}
	return s.regime[i]
}

// Compute 一次性计算一个品种的全部特征。所有滚动统计只看当前及更早
// 的数据；通道极值额外前移一根，保证突破参考位完全由历史构成。
// 序列长度不足任何窗口时相应特征整段未定义，而不是报错。
func Compute(symbol string, bars []market.Bar, p Params, rp RegimeParams) (*Set, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	n := len(bars)
	closes := market.Closes(bars)
	highs := market.Highs(bars)
	lows := market.Lows(bars)

	set := &Set{
		symbol: symbol,
		length: n,
		series: map[string]Series{
			Close: newSeries(closes),
			High:  newSeries(highs),
			Low:   newSeries(lows),
		},
	}

	set.series[EMAFast] = emaSeries(closes, p.EMAFast)
	set.series[EMASlow] = emaSeries(closes, p.EMASlow)

	atr := atrSeries(highs, lows, closes, p.ATRPeriod)
	set.series[ATR] = atr
	set.series[ATRPips] = pipsSeries(symbol, atr)
	set.series[ADX] = adxSeries(highs, lows, closes, p.ADXPeriod)

	set.series[ChannelHigh] = channelSeries(highs, p.BreakoutWindow, true)
	set.series[ChannelLow] = channelSeries(lows, p.BreakoutWindow, false)

	set.regime = computeRegime(bars, rp)
	return set, nil
}

func validateParams(p Params) error {
	for name, v := range map[string]int{
		"ema_fast":        p.EMAFast,
		"ema_slow":        p.EMASlow,
		"atr_period":      p.ATRPeriod,
		"adx_period":      p.ADXPeriod,
		"breakout_window": p.BreakoutWindow,
	} {
		if v <= 0 {
			return fmt.Errorf("feature params: %s must be > 0", name)
		}
	}
	return nil
}

// emaSeries 的预热区为前 n-1 根（与 min_periods=n 对齐）。
func emaSeries(closes []float64, n int) Series {
	if len(closes) < n {
		return newUndefinedSeries(len(closes))
	}
	return newSeries(talib.Ema(closes, n)).maskBefore(n - 1)
}

// atrSeries 用 Wilder 递推，首个有效值在下标 n（需要前收盘）。
func atrSeries(highs, lows, closes []float64, n int) Series {
	if len(closes) <= n {
		return newUndefinedSeries(len(closes))
	}
	return newSeries(talib.Atr(highs, lows, closes, n)).maskBefore(n)
}

// adxSeries 双重 Wilder 平滑，预热区 2n-1 根。
func adxSeries(highs, lows, closes []float64, n int) Series {
	if len(closes) < 2*n {
		return newUndefinedSeries(len(closes))
	}
	return newSeries(talib.Adx(highs, lows, closes, n)).maskBefore(2*n - 1)
}

// channelSeries 先对原始序列做宽度 n 的滚动极值，再整体前移一根：
// 下标 i 处的值是 [i-n, i-1] 区间的极值，完全不含当前根。
func channelSeries(values []float64, n int, max bool) Series {
	length := len(values)
	if length < n+1 {
		return newUndefinedSeries(length)
	}
	var rolled []float64
	if max {
		rolled = talib.Max(values, n)
	} else {
		rolled = talib.Min(values, n)
	}
	shifted := make([]float64, length)
	for i := range shifted {
		if i == 0 {
			shifted[i] = 0
			continue
		}
		shifted[i] = rolled[i-1]
	}
	// 前 n 根没有完整的历史窗口。
	return newSeries(shifted).maskBefore(n)
}

func pipsSeries(symbol string, priceSeries Series) Series {
	vals := make([]float64, priceSeries.Len())
	for i := range vals {
		v, ok := priceSeries.At(i)
		if !ok {
			vals[i] = nan()
			continue
		}
		vals[i] = market.ToPips(symbol, v)
	}
	return newSeries(vals)
}
