package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overlayBase(t *testing.T) *Config {
	t.Helper()
	yaml := baseYAML + `
outputs:
  debug: true
`
	cfg, err := Load(writeConfig(t, "config.yaml", yaml))
	require.NoError(t, err)
	return cfg
}

func TestOverlayAppliesCombo(t *testing.T) {
	cfg := overlayBase(t)
	out, err := cfg.Overlay("s1_trend_breakout_donchian", map[string]float64{
		"ema_fast": 10,
		"ema_slow": 100,
		"adx_th":   25,
		"k_sl":     2.5,
	})
	require.NoError(t, err)

	p := out.Strategies.Params["s1_trend_breakout_donchian"]
	assert.Equal(t, 10, p.EMAFast)
	assert.Equal(t, 100, p.EMASlow)
	assert.InDelta(t, 25.0, p.ADXTh, 1e-9)
	assert.InDelta(t, 2.5, p.KSL, 1e-9)

	// 原配置不被触碰。
	orig := cfg.Strategies.Params["s1_trend_breakout_donchian"]
	assert.Equal(t, 20, orig.EMAFast)
	assert.True(t, cfg.Outputs.Debug)
	// 叠加结果强制关闭调试输出。
	assert.False(t, out.Outputs.Debug)
}

func TestOverlayRejectsUnknownKey(t *testing.T) {
	cfg := overlayBase(t)
	_, err := cfg.Overlay("s1_trend_breakout_donchian", map[string]float64{"warp_factor": 9})
	require.Error(t, err)
	var oe *OverlayError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "warp_factor", oe.Key)
}

func TestOverlayRejectsBadValues(t *testing.T) {
	cfg := overlayBase(t)

	// 整数选项不接受小数。
	_, err := cfg.Overlay("s1_trend_breakout_donchian", map[string]float64{"ema_fast": 10.5})
	var oe *OverlayError
	require.ErrorAs(t, err, &oe)

	// 叠加后 ema_fast >= ema_slow 也算组合失败。
	_, err = cfg.Overlay("s1_trend_breakout_donchian", map[string]float64{"ema_fast": 60})
	require.ErrorAs(t, err, &oe)

	_, err = cfg.Overlay("s1_trend_breakout_donchian", map[string]float64{"k_sl": -1})
	require.ErrorAs(t, err, &oe)
}

func TestOverlayUnknownStrategy(t *testing.T) {
	cfg := overlayBase(t)
	_, err := cfg.Overlay("nope", map[string]float64{"ema_fast": 10})
	var oe *OverlayError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "nope", oe.Strategy)
}
