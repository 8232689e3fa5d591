package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxdesk/internal/config"
	"fxdesk/internal/market"
	"fxdesk/internal/signal"
)

// trendBars 构造一段“盘整 -> 向上突破 -> 回落”的行情，
// 突破根产生一个多头信号并在回落中止损离场。
func trendBars() []market.Bar {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	var bars []market.Bar
	add := func(open, high, low, close float64) {
		bars = append(bars, market.Bar{
			Time: start.Add(time.Duration(len(bars)) * 5 * time.Minute),
			Open: open, High: high, Low: low, Close: close,
		})
	}
	base := 1.1000
	// 盘整区：微小的确定性抖动。
	for i := 0; i < 20; i++ {
		jitter := float64(i%3-1) * 0.0001
		add(base+jitter, base+jitter+0.0002, base+jitter-0.0002, base+jitter+0.0001)
	}
	// 突破根。
	add(base, base+0.0048, base-0.0002, base+0.0040)
	// 回落，触发止损。序列到此为止，避免反向再触发新信号。
	for i := 1; i <= 6; i++ {
		px := base + 0.0040 - float64(i)*0.0010
		add(px+0.0005, px+0.0008, px-0.0008, px)
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Universe: config.UniverseConfig{Symbols: []string{"EURUSD"}},
		Regime: config.RegimeConfig{
			ATRPctWindow: 5, ATRPctN: 3,
			ZLow: -0.5, ZHigh: 0.5, SpikeTRATRTh: 2.5,
		},
		Strategies: config.StrategiesConfig{
			Enabled: []string{signal.DonchianBreakoutID},
			Params: map[string]config.StrategyParams{
				signal.DonchianBreakoutID: {
					EMAFast: 3, EMASlow: 5,
					ATRPeriod: 3, ADXPeriod: 3,
					ADXTh:             0,
					BreakoutWindow:    4,
					BufferATR:         0.1,
					// 测试只关注成交与成本路径，波动门禁全放行。
					AllowedVolRegimes: []string{"LOW", "MID", "HIGH", "UNKNOWN"},
					SpikeBlock:        false,
					CooldownBars:      0,
					KSL:               2.0,
					MinSLPoints:       5,
					KTP:               0,
				},
			},
		},
		Risk: config.RiskConfig{RBase: 100, MaxHoldBars: 96},
		Costs: config.CostsConfig{
			SpreadBaselinePips: map[string]float64{"EURUSD": 0.6},
			Slippage: config.SlippageConfig{
				SlipBase: 0.1, SlipK: 0.05,
				SpikeTRATRTh: 2.5, SpikeMult: 1.8,
			},
		},
		Tuning: config.TuningConfig{
			Strategy:     signal.DonchianBreakoutID,
			TuneScenario: "B",
			MinTrades:    300,
			Penalty:      0.25,
		},
	}
}

func TestRunAllScenarios(t *testing.T) {
	bars := map[string][]market.Bar{"EURUSD": trendBars()}
	rep, err := Run(bars, testConfig(), signal.DonchianBreakoutID, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, rep.Scenarios)
	require.Len(t, rep.ByScenario, 3)
	for _, sc := range []string{"A", "B", "C"} {
		m, ok := rep.ScenarioMetrics(sc)
		require.True(t, ok, sc)
		assert.Greater(t, m.Trades, 0, "scenario %s should trade", sc)
	}
	for _, tr := range rep.Trades {
		assert.Contains(t, []string{"A", "B", "C"}, tr.Scenario)
		assert.Equal(t, signal.DonchianBreakoutID, tr.Strategy)
		assert.Greater(t, tr.Qty, 0.0)
		// 成交在信号下一根开盘。
		assert.Greater(t, tr.ExitIndex, 0)
		assert.GreaterOrEqual(t, tr.ExitIndex, tr.EntryIndex)
	}
	assert.Equal(t, rep.Overall.Trades, len(rep.Trades))
}

func TestRunScenarioFilter(t *testing.T) {
	bars := map[string][]market.Bar{"EURUSD": trendBars()}

	only, err := Run(bars, testConfig(), signal.DonchianBreakoutID, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, only.Scenarios)
	require.Len(t, only.ByScenario, 1)
	_, ok := only.ScenarioMetrics("B")
	assert.True(t, ok)
	for _, tr := range only.Trades {
		assert.Equal(t, "B", tr.Scenario)
	}

	// 过滤器乱序传入，输出仍是规范顺序。
	two, err := Run(bars, testConfig(), signal.DonchianBreakoutID, []string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, two.Scenarios)
	require.Len(t, two.ByScenario, 2)

	_, err = Run(bars, testConfig(), signal.DonchianBreakoutID, []string{"Z"})
	require.Error(t, err)
}

func TestRunScenarioCostsBite(t *testing.T) {
	bars := map[string][]market.Bar{"EURUSD": trendBars()}
	rep, err := Run(bars, testConfig(), signal.DonchianBreakoutID, nil)
	require.NoError(t, err)

	a := rep.ScenarioTrades("A")
	b := rep.ScenarioTrades("B")
	c := rep.ScenarioTrades("C")
	require.NotEmpty(t, a)
	require.Equal(t, len(a), len(b))
	require.Equal(t, len(a), len(c))

	// 同一笔交易在 B、C 下都比基线 A 入场更差、净损益更低。
	// B 与 C 之间的大小关系取决于成交根的 TR/ATR 比值，不断言。
	for i := range a {
		require.Equal(t, a[i].EntryIndex, b[i].EntryIndex)
		require.Equal(t, a[i].EntryIndex, c[i].EntryIndex)
		assert.Greater(t, b[i].EntryPrice, a[i].EntryPrice)
		assert.Greater(t, c[i].EntryPrice, a[i].EntryPrice)
		assert.Less(t, b[i].PnLPips, a[i].PnLPips)
		assert.Less(t, c[i].PnLPips, a[i].PnLPips)
	}
}

func TestRunDeterministic(t *testing.T) {
	bars := map[string][]market.Bar{"EURUSD": trendBars()}
	r1, err := Run(bars, testConfig(), signal.DonchianBreakoutID, nil)
	require.NoError(t, err)
	r2, err := Run(bars, testConfig(), signal.DonchianBreakoutID, nil)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestRunStructuralErrors(t *testing.T) {
	cfg := testConfig()

	_, err := Run(map[string][]market.Bar{}, cfg, signal.DonchianBreakoutID, nil)
	var ce *market.ContractError
	require.ErrorAs(t, err, &ce)

	bad := trendBars()
	bad[5].Time = bad[4].Time
	_, err = Run(map[string][]market.Bar{"EURUSD": bad}, cfg, signal.DonchianBreakoutID, nil)
	require.ErrorAs(t, err, &ce)

	_, err = Run(map[string][]market.Bar{"EURUSD": trendBars()}, cfg, "nope", nil)
	require.Error(t, err)
}
