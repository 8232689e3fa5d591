package config

import (
	"fmt"
	"math"
	"sort"
)

// OverlayError 表示一组候选参数无法套用到基础配置上。
// 调参协调器把它当作该组合的结构性失败记录下来，不中断全局搜索。
type OverlayError struct {
	Strategy string
	Key      string
	Reason   string
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay %s.%s: %s", e.Strategy, e.Key, e.Reason)
}

// Overlay 在基础配置的深拷贝上套用一组网格参数，原配置不被修改。
// 未知键、非法值一律返回 *OverlayError；叠加结果强制 Debug=false，
// 保证搜索过程中不产生逐笔调试输出。
func (c *Config) Overlay(strategyID string, combo map[string]float64) (*Config, error) {
	params, ok := c.Strategies.Params[strategyID]
	if !ok {
		return nil, &OverlayError{Strategy: strategyID, Key: "", Reason: "strategy not configured"}
	}
	clone := c.clone()

	// 按键名排序遍历，保证同一组合的报错信息稳定。
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := combo[key]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &OverlayError{Strategy: strategyID, Key: key, Reason: "value is not finite"}
		}
		if err := applyComboValue(&params, strategyID, key, v); err != nil {
			return nil, err
		}
	}
	if err := params.validate(); err != nil {
		return nil, &OverlayError{Strategy: strategyID, Key: "", Reason: err.Error()}
	}
	clone.Strategies.Params[strategyID] = params
	clone.Outputs.Debug = false
	return clone, nil
}

func applyComboValue(p *StrategyParams, strategyID, key string, v float64) error {
	fail := func(reason string) error {
		return &OverlayError{Strategy: strategyID, Key: key, Reason: reason}
	}
	asInt := func() (int, error) {
		if v != math.Trunc(v) {
			return 0, fail("expects an integer value")
		}
		return int(v), nil
	}
	switch key {
	case "ema_fast":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n <= 0 {
			return fail("must be > 0")
		}
		p.EMAFast = n
	case "ema_slow":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n <= 0 {
			return fail("must be > 0")
		}
		p.EMASlow = n
	case "atr_period":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n <= 0 {
			return fail("must be > 0")
		}
		p.ATRPeriod = n
	case "adx_period":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n <= 0 {
			return fail("must be > 0")
		}
		p.ADXPeriod = n
	case "adx_th":
		if v < 0 {
			return fail("must be >= 0")
		}
		p.ADXTh = v
	case "breakout_window":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n <= 0 {
			return fail("must be > 0")
		}
		p.BreakoutWindow = n
	case "buffer_atr":
		if v < 0 {
			return fail("must be >= 0")
		}
		p.BufferATR = v
	case "cooldown_bars":
		n, err := asInt()
		if err != nil {
			return err
		}
		if n < 0 {
			return fail("must be >= 0")
		}
		p.CooldownBars = n
	case "k_sl":
		if v <= 0 {
			return fail("must be > 0")
		}
		p.KSL = v
	case "min_sl_points":
		if v <= 0 {
			return fail("must be > 0")
		}
		p.MinSLPoints = v
	case "k_tp":
		if v < 0 {
			return fail("must be >= 0")
		}
		p.KTP = v
	case "min_tp_points":
		if v < 0 {
			return fail("must be >= 0")
		}
		p.MinTPPoints = v
	default:
		return fail("unknown grid option")
	}
	return nil
}

// clone 返回配置的深拷贝，map/slice 字段逐个复制。
func (c *Config) clone() *Config {
	out := *c
	out.Universe.Symbols = append([]string(nil), c.Universe.Symbols...)
	out.Strategies.Enabled = append([]string(nil), c.Strategies.Enabled...)
	out.Strategies.Params = make(map[string]StrategyParams, len(c.Strategies.Params))
	for id, p := range c.Strategies.Params {
		cp := p
		cp.AllowedVolRegimes = append([]string(nil), p.AllowedVolRegimes...)
		out.Strategies.Params[id] = cp
	}
	out.Costs.SpreadBaselinePips = make(map[string]float64, len(c.Costs.SpreadBaselinePips))
	for k, v := range c.Costs.SpreadBaselinePips {
		out.Costs.SpreadBaselinePips[k] = v
	}
	out.Tuning.Grid = make(map[string][]float64, len(c.Tuning.Grid))
	for k, v := range c.Tuning.Grid {
		out.Tuning.Grid[k] = append([]float64(nil), v...)
	}
	out.Tuning.ScenarioWeights = make(map[string]float64, len(c.Tuning.ScenarioWeights))
	for k, v := range c.Tuning.ScenarioWeights {
		out.Tuning.ScenarioWeights[k] = v
	}
	return &out
}
