package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxdesk/internal/config"
	"fxdesk/internal/feature"
)

// fixtureSet 构造一个长度 4 的特征集：下标 3 满足全部多头门禁。
// 通道上沿 1.1000，缓冲 0.1*0.0010=0.0001，收盘 1.1005 突破；
// 前一根收盘 1.0995 仍在前一根通道内。
func fixtureSet(mutate func(map[string]feature.Series, []string)) *feature.Set {
	nan := math.NaN()
	series := map[string]feature.Series{
		feature.Close:       feature.NewSeries([]float64{1.0990, 1.0992, 1.0995, 1.1005}),
		feature.High:        feature.NewSeries([]float64{1.0995, 1.0996, 1.0999, 1.1008}),
		feature.Low:         feature.NewSeries([]float64{1.0985, 1.0988, 1.0990, 1.0998}),
		feature.EMAFast:     feature.NewSeries([]float64{nan, nan, 1.0994, 1.0999}),
		feature.EMASlow:     feature.NewSeries([]float64{nan, nan, 1.0992, 1.0993}),
		feature.ATR:         feature.NewSeries([]float64{nan, 0.0010, 0.0010, 0.0010}),
		feature.ATRPips:     feature.NewSeries([]float64{nan, 10, 10, 10}),
		feature.ADX:         feature.NewSeries([]float64{nan, nan, 24, 28}),
		feature.ChannelHigh: feature.NewSeries([]float64{nan, nan, 1.1000, 1.1000}),
		feature.ChannelLow:  feature.NewSeries([]float64{nan, nan, 1.0984, 1.0984}),
	}
	regime := []string{
		"VOL=UNKNOWN|SPIKE=0",
		"VOL=UNKNOWN|SPIKE=0",
		"VOL=MID|SPIKE=0",
		"VOL=MID|SPIKE=0",
	}
	if mutate != nil {
		mutate(series, regime)
	}
	return feature.NewSetFromSeries("EURUSD", 4, series, regime)
}

func fixtureParams() config.StrategyParams {
	return config.StrategyParams{
		EMAFast: 3, EMASlow: 5,
		ATRPeriod: 3, ADXPeriod: 3,
		ADXTh:             25,
		BreakoutWindow:    4,
		BufferATR:         0.1,
		AllowedVolRegimes: []string{"MID", "HIGH"},
		SpikeBlock:        true,
		CooldownBars:      2,
		KSL:               2.0,
		MinSLPoints:       5,
		KTP:               1.5,
		MinTPPoints:       5,
	}
}

func TestEvaluateLongSignal(t *testing.T) {
	fs := fixtureSet(nil)
	p := fixtureParams()

	it := donchianBreakout{}.Evaluate(fs, p, 3, -1)
	require.Equal(t, Long, it.Side)
	assert.Equal(t, DonchianBreakoutID, it.Strategy)
	assert.Equal(t, "EURUSD", it.Symbol)
	assert.Equal(t, 3, it.Index)
	// SL = max(2.0*10, 5) = 20 点，TP = max(1.5*10, 5) = 15 点。
	assert.InDelta(t, 20.0, it.SLPips, 1e-9)
	assert.InDelta(t, 15.0, it.TPPips, 1e-9)
	assert.True(t, it.HasTP())

	for _, tag := range []string{"adx_gate", "regime", "breakout", "confirmation", "cooldown"} {
		assert.Equal(t, "pass", it.Tags[tag], tag)
	}
	assert.Equal(t, string(Long), it.Tags["ema_bias"])
}

func TestEvaluateNoTPWhenKTPZero(t *testing.T) {
	fs := fixtureSet(nil)
	p := fixtureParams()
	p.KTP = 0

	it := donchianBreakout{}.Evaluate(fs, p, 3, -1)
	require.Equal(t, Long, it.Side)
	assert.False(t, it.HasTP())
	assert.Zero(t, it.TPPips)
}

// 门禁按固定顺序短路：被拒绝的那道门之后的标签不应出现。
func TestGateShortCircuit(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(map[string]feature.Series, []string)
		params   func(*config.StrategyParams)
		lastExit int
		wantTag  string
	}{
		{
			name: "ema undefined",
			mutate: func(s map[string]feature.Series, _ []string) {
				s[feature.EMAFast] = feature.NewSeries([]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()})
			},
			lastExit: -1,
			wantTag:  "ema_bias",
		},
		{
			name:     "adx below threshold",
			params:   func(p *config.StrategyParams) { p.ADXTh = 50 },
			lastExit: -1,
			wantTag:  "adx_gate",
		},
		{
			name: "adx not rising",
			mutate: func(s map[string]feature.Series, _ []string) {
				s[feature.ADX] = feature.NewSeries([]float64{math.NaN(), math.NaN(), 30, 28})
			},
			params:   func(p *config.StrategyParams) { p.ADXRising = true },
			lastExit: -1,
			wantTag:  "adx_gate",
		},
		{
			name: "regime not allowed",
			mutate: func(_ map[string]feature.Series, regime []string) {
				regime[3] = "VOL=LOW|SPIKE=0"
			},
			lastExit: -1,
			wantTag:  "regime",
		},
		{
			name: "spike blocked",
			mutate: func(_ map[string]feature.Series, regime []string) {
				regime[3] = "VOL=MID|SPIKE=1"
			},
			lastExit: -1,
			wantTag:  "regime",
		},
		{
			name: "no breakout",
			mutate: func(s map[string]feature.Series, _ []string) {
				s[feature.ChannelHigh] = feature.NewSeries([]float64{math.NaN(), math.NaN(), 1.1000, 1.1010})
			},
			lastExit: -1,
			wantTag:  "breakout",
		},
		{
			name: "already broken out",
			mutate: func(s map[string]feature.Series, _ []string) {
				// 前一根收盘已在前一根通道上方：持续突破不追。
				s[feature.Close] = feature.NewSeries([]float64{1.0990, 1.0992, 1.1004, 1.1015})
			},
			lastExit: -1,
			wantTag:  "confirmation",
		},
		{
			name:     "cooldown active",
			lastExit: 2,
			wantTag:  "cooldown",
		},
	}

	gateOrder := []string{"ema_bias", "adx_gate", "regime", "breakout", "confirmation", "cooldown"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := fixtureSet(tc.mutate)
			p := fixtureParams()
			if tc.params != nil {
				tc.params(&p)
			}
			it := donchianBreakout{}.Evaluate(fs, p, 3, tc.lastExit)
			require.Equal(t, Flat, it.Side)
			reason, ok := it.Tags[tc.wantTag]
			require.True(t, ok, "missing tag %s, got %v", tc.wantTag, it.Tags)
			assert.NotEqual(t, "pass", reason)

			// 失败门禁之后的门禁不应出现在标签里。
			failed := false
			for _, tag := range gateOrder {
				if failed {
					_, present := it.Tags[tag]
					assert.False(t, present, "tag %s evaluated after failed gate", tag)
				}
				if tag == tc.wantTag {
					failed = true
				}
			}
		})
	}
}

// 强度门禁要求严格大于阈值，正好等于阈值按拒绝处理。
func TestADXAtThresholdRejected(t *testing.T) {
	fs := fixtureSet(nil)
	p := fixtureParams()
	p.ADXTh = 28 // 与下标 3 的 ADX 相等

	it := donchianBreakout{}.Evaluate(fs, p, 3, -1)
	require.Equal(t, Flat, it.Side)
	assert.Equal(t, "below threshold", it.Tags["adx_gate"])
}

// 要求 ADX 抬升但上一根没有值时视为通过。
func TestADXRisingWithUndefinedPrev(t *testing.T) {
	fs := fixtureSet(func(s map[string]feature.Series, _ []string) {
		nan := math.NaN()
		s[feature.ADX] = feature.NewSeries([]float64{nan, nan, nan, 28})
	})
	p := fixtureParams()
	p.ADXRising = true

	it := donchianBreakout{}.Evaluate(fs, p, 3, -1)
	require.Equal(t, Long, it.Side)
	assert.Equal(t, "pass", it.Tags["adx_gate"])
}

// 冷却期边界：距上次平仓的根数正好等于冷却根数时放行。
func TestCooldownBoundaryAllowsEntry(t *testing.T) {
	fs := fixtureSet(nil)
	p := fixtureParams() // CooldownBars = 2

	boundary := donchianBreakout{}.Evaluate(fs, p, 3, 1) // 间隔 2 根
	require.Equal(t, Long, boundary.Side)
	assert.Equal(t, "pass", boundary.Tags["cooldown"])

	inside := donchianBreakout{}.Evaluate(fs, p, 3, 2) // 间隔 1 根
	require.Equal(t, Flat, inside.Side)
	assert.NotEqual(t, "pass", inside.Tags["cooldown"])
}

func TestEvaluateShortSignal(t *testing.T) {
	fs := fixtureSet(func(s map[string]feature.Series, _ []string) {
		nan := math.NaN()
		// 反转快慢均线并让收盘跌破通道下沿。
		s[feature.EMAFast] = feature.NewSeries([]float64{nan, nan, 1.0990, 1.0988})
		s[feature.EMASlow] = feature.NewSeries([]float64{nan, nan, 1.0992, 1.0993})
		s[feature.Close] = feature.NewSeries([]float64{1.0990, 1.0992, 1.0990, 1.0980})
	})
	it := donchianBreakout{}.Evaluate(fs, fixtureParams(), 3, -1)
	require.Equal(t, Short, it.Side)
	assert.Equal(t, string(Short), it.Tags["ema_bias"])
	assert.Greater(t, it.SLPips, 0.0)
}

func TestRegistry(t *testing.T) {
	s, err := Resolve(DonchianBreakoutID)
	require.NoError(t, err)
	assert.Equal(t, DonchianBreakoutID, s.ID())

	_, err = Resolve("nope")
	require.Error(t, err)

	assert.Contains(t, Registered(), DonchianBreakoutID)
}
