package config

import (
	"fmt"
	"strings"
)

var validScenarioIDs = map[string]bool{"A": true, "B": true, "C": true}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.BarContract.validate(); err != nil {
		return err
	}
	if err := c.Regime.validate(); err != nil {
		return err
	}
	if err := c.Strategies.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Tuning.validate(); err != nil {
		return err
	}
	return nil
}

// validate 固定 K 线约定：信号在收盘、成交在下一根开盘，
// 且不允许在首根成交。配置偏离约定直接拒绝加载。
func (b *BarContractConfig) validate() error {
	if b.SignalOn != defaultSignalOn {
		return fmt.Errorf("bar_contract.signal_on only supports %q (got %q)", defaultSignalOn, b.SignalOn)
	}
	if b.FillOn != defaultFillOn {
		return fmt.Errorf("bar_contract.fill_on only supports %q (got %q)", defaultFillOn, b.FillOn)
	}
	if b.AllowBar0 {
		return fmt.Errorf("bar_contract.allow_bar0 must be false")
	}
	return nil
}

func (r *RegimeConfig) validate() error {
	if r.ATRPctWindow <= 0 {
		return fmt.Errorf("regime.atr_pct_window must be > 0")
	}
	if r.ATRPctN <= 0 {
		return fmt.Errorf("regime.atr_pct_n must be > 0")
	}
	if r.ZLow >= r.ZHigh {
		return fmt.Errorf("regime requires z_low < z_high (got %.2f >= %.2f)", r.ZLow, r.ZHigh)
	}
	if r.SpikeTRATRTh <= 0 {
		return fmt.Errorf("regime.spike_tr_atr_th must be > 0")
	}
	return nil
}

func (s *StrategiesConfig) validate() error {
	for _, id := range s.Enabled {
		if _, ok := s.Params[id]; !ok {
			return fmt.Errorf("strategies.enabled contains unconfigured strategy id: %s", id)
		}
	}
	for id, p := range s.Params {
		if err := p.validate(); err != nil {
			return fmt.Errorf("strategies.params.%s: %w", id, err)
		}
	}
	return nil
}

func (p *StrategyParams) validate() error {
	if p.EMAFast <= 0 || p.EMASlow <= 0 {
		return fmt.Errorf("ema_fast/ema_slow must be > 0")
	}
	if p.EMAFast >= p.EMASlow {
		return fmt.Errorf("ema_fast must be < ema_slow (got %d >= %d)", p.EMAFast, p.EMASlow)
	}
	if p.ADXTh < 0 {
		return fmt.Errorf("adx_th must be >= 0")
	}
	if p.KSL <= 0 {
		return fmt.Errorf("k_sl must be > 0")
	}
	if p.KTP < 0 {
		return fmt.Errorf("k_tp must be >= 0")
	}
	if p.MinSLPoints <= 0 {
		return fmt.Errorf("min_sl_points must be > 0")
	}
	for _, v := range p.AllowedVolRegimes {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "LOW", "MID", "HIGH":
		default:
			return fmt.Errorf("allowed_vol_regimes only supports LOW/MID/HIGH (got %q)", v)
		}
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.RBase <= 0 {
		return fmt.Errorf("risk.r_base must be > 0")
	}
	if r.MaxHoldBars <= 0 {
		return fmt.Errorf("risk.max_hold_bars must be > 0")
	}
	return nil
}

func (t *TuningConfig) validate() error {
	if !validScenarioIDs[t.TuneScenario] {
		return fmt.Errorf("tuning.tune_scenario only supports A/B/C (got %q)", t.TuneScenario)
	}
	if t.TopK <= 0 {
		return fmt.Errorf("tuning.top_k must be > 0")
	}
	if t.Penalty <= 0 || t.Penalty > 1 {
		return fmt.Errorf("tuning.penalty must be in (0,1]")
	}
	for name, values := range t.Grid {
		if len(values) == 0 {
			return fmt.Errorf("tuning.grid.%s has no candidate values", name)
		}
	}
	for id, w := range t.ScenarioWeights {
		if !validScenarioIDs[strings.ToUpper(id)] {
			return fmt.Errorf("tuning.scenario_weights contains unknown scenario: %s", id)
		}
		if w < 0 {
			return fmt.Errorf("tuning.scenario_weights.%s must be >= 0", id)
		}
	}
	if t.MaxBars < 0 {
		return fmt.Errorf("tuning.max_bars must be >= 0")
	}
	return nil
}
