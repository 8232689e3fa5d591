package feature

import (
	"fmt"
	"math"

	"fxdesk/internal/market"

	talib "github.com/markcheno/go-talib"
)

// RegimeParams 控制波动状态分类。
type RegimeParams struct {
	Window         int     // ATR% z-score 滚动窗口
	ATRPeriod      int     // ATR 周期
	ZLow           float64 // z < ZLow => LOW
	ZHigh          float64 // z > ZHigh => HIGH
	SpikeThreshold float64 // TR/ATR 超过即标记 spike
}

func nan() float64 { return math.NaN() }

// computeRegime 逐根生成 VOL=<LOW|MID|HIGH>|SPIKE=<0|1> 注记。
// ATR% 的 z-score 决定档位，TR/ATR 比值决定 spike 位；
// z 未定义的预热区统一给 UNKNOWN。
func computeRegime(bars []market.Bar, rp RegimeParams) []string {
	n := len(bars)
	out := make([]string, n)
	for i := range out {
		out[i] = "VOL=UNKNOWN|SPIKE=0"
	}
	if rp.Window <= 0 || rp.ATRPeriod <= 0 || n <= rp.ATRPeriod {
		return out
	}

	highs := market.Highs(bars)
	lows := market.Lows(bars)
	closes := market.Closes(bars)

	atr := talib.Atr(highs, lows, closes, rp.ATRPeriod)
	atrPct := make([]float64, n)
	for i := range atrPct {
		if closes[i] != 0 {
			atrPct[i] = atr[i] / closes[i] * 100
		}
	}

	// z 的最早有效下标：ATR 预热 + 滚动窗口。
	firstValid := rp.ATRPeriod + rp.Window - 1
	if firstValid >= n {
		return out
	}
	mean := talib.Sma(atrPct, rp.Window)
	std := talib.StdDev(atrPct, rp.Window, 1.0)

	tr := talib.TRange(highs, lows, closes)

	for i := firstValid; i < n; i++ {
		var vol string
		if std[i] == 0 {
			vol = "UNKNOWN"
		} else {
			z := (atrPct[i] - mean[i]) / std[i]
			switch {
			case z < rp.ZLow:
				vol = "LOW"
			case z > rp.ZHigh:
				vol = "HIGH"
			default:
				vol = "MID"
			}
		}
		spike := 0
		if atr[i] > 0 && tr[i]/atr[i] > rp.SpikeThreshold {
			spike = 1
		}
		out[i] = fmt.Sprintf("VOL=%s|SPIKE=%d", vol, spike)
	}
	return out
}
