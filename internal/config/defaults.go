package config

import (
	"runtime"
	"strings"
)

// 默认值常量
const (
	defaultAppLogLevel = "info"
	defaultAppLogPath  = ""
	defaultTimeframe   = "5m"

	defaultSignalOn = "close"
	defaultFillOn   = "open_next"

	defaultRegimeATRPctWindow = 960
	defaultRegimeATRPctN      = 14
	defaultRegimeZLow         = -0.5
	defaultRegimeZHigh        = 0.5
	defaultRegimeSpikeTh      = 2.5

	defaultATRPeriod      = 14
	defaultADXPeriod      = 14
	defaultADXTh          = 20.0
	defaultBreakoutWindow = 20
	defaultBufferATR      = 0.1
	defaultMinSLPoints    = 5.0
	defaultMinTPPoints    = 10.0

	defaultRiskRBase       = 100.0
	defaultRiskMaxHoldBars = 96

	defaultSlipBase   = 0.1
	defaultSlipK      = 0.05
	defaultSpikeMult  = 1.8
	defaultSpreadPips = 0.8

	defaultTuningTopK          = 10
	defaultTuningMinTrades     = 300
	defaultTuningPenalty       = 0.25
	defaultTuningScenario      = "B"
	defaultTuningProgressEvery = 20
	maxDefaultWorkers          = 7

	defaultRunsDir = "runs"
	defaultDBPath  = "runs/tuning.db"
)

var defaultAllowedVolRegimes = []string{"MID", "HIGH"}

// defaultGrid 是代表策略的默认搜索网格，config 里配置了的选项
// 逐项覆盖，未配置的沿用这里的值。
var defaultGrid = map[string][]float64{
	"ema_fast":      {10, 20, 30},
	"ema_slow":      {50, 100},
	"adx_th":        {15, 20, 25, 30},
	"k_sl":          {1.5, 2.0, 2.5, 3.0},
	"k_tp":          {1.0, 1.5, 2.0},
	"min_sl_points": {5, 8},
	"min_tp_points": {5, 8},
}

// DefaultGrid 返回默认网格的一份拷贝。
func DefaultGrid() map[string][]float64 {
	out := make(map[string][]float64, len(defaultGrid))
	for k, v := range defaultGrid {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

// DefaultWorkers 按 CPU 数推算默认并发度：NumCPU-1，封顶 7，至少 1。
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n > maxDefaultWorkers {
		n = maxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Universe.applyDefaults(keys)
	c.BarContract.applyDefaults(keys)
	c.Regime.applyDefaults(keys)
	c.Strategies.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Costs.applyDefaults(keys)
	c.Tuning.applyDefaults(keys)
	c.Outputs.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (u *UniverseConfig) applyDefaults(keys keySet) {
	if u == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("universe.timeframe", &u.Timeframe, defaultTimeframe),
	)
}

func (b *BarContractConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("bar_contract.signal_on", &b.SignalOn, defaultSignalOn),
		stringFieldDefault("bar_contract.fill_on", &b.FillOn, defaultFillOn),
	)
}

func (r *RegimeConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "regime.atr_pct_window",
			need:  func() bool { return r.ATRPctWindow <= 0 },
			apply: func() { r.ATRPctWindow = defaultRegimeATRPctWindow },
		},
		fieldDefault{
			key:   "regime.atr_pct_n",
			need:  func() bool { return r.ATRPctN <= 0 },
			apply: func() { r.ATRPctN = defaultRegimeATRPctN },
		},
		fieldDefault{
			key:   "regime.z_low",
			need:  func() bool { return r.ZLow == 0 },
			apply: func() { r.ZLow = defaultRegimeZLow },
		},
		fieldDefault{
			key:   "regime.z_high",
			need:  func() bool { return r.ZHigh == 0 },
			apply: func() { r.ZHigh = defaultRegimeZHigh },
		},
		fieldDefault{
			key:   "regime.spike_tr_atr_th",
			need:  func() bool { return r.SpikeTRATRTh <= 0 },
			apply: func() { r.SpikeTRATRTh = defaultRegimeSpikeTh },
		},
	)
}

func (s *StrategiesConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	if s.Params == nil {
		s.Params = make(map[string]StrategyParams)
	}
	for id, p := range s.Params {
		p.applyDefaults()
		s.Params[id] = p
	}
}

// applyDefaults 不走 keySet：策略参数表按策略 ID 动态出现，
// 只按零值兜底。
func (p *StrategyParams) applyDefaults() {
	if p.ATRPeriod <= 0 {
		p.ATRPeriod = defaultATRPeriod
	}
	if p.ADXPeriod <= 0 {
		p.ADXPeriod = defaultADXPeriod
	}
	if p.ADXTh <= 0 {
		p.ADXTh = defaultADXTh
	}
	if p.BreakoutWindow <= 0 {
		p.BreakoutWindow = defaultBreakoutWindow
	}
	if p.BufferATR < 0 {
		p.BufferATR = defaultBufferATR
	}
	if len(p.AllowedVolRegimes) == 0 {
		p.AllowedVolRegimes = append([]string(nil), defaultAllowedVolRegimes...)
	}
	if p.CooldownBars < 0 {
		p.CooldownBars = 0
	}
	if p.MinSLPoints <= 0 {
		p.MinSLPoints = defaultMinSLPoints
	}
	if p.KTP > 0 && p.MinTPPoints <= 0 {
		p.MinTPPoints = defaultMinTPPoints
	}
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.r_base",
			need:  func() bool { return r.RBase <= 0 },
			apply: func() { r.RBase = defaultRiskRBase },
		},
		fieldDefault{
			key:   "risk.max_hold_bars",
			need:  func() bool { return r.MaxHoldBars <= 0 },
			apply: func() { r.MaxHoldBars = defaultRiskMaxHoldBars },
		},
	)
}

func (c *CostsConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	if c.SpreadBaselinePips == nil {
		c.SpreadBaselinePips = make(map[string]float64)
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "costs.slippage.slip_base",
			need:  func() bool { return c.Slippage.SlipBase <= 0 },
			apply: func() { c.Slippage.SlipBase = defaultSlipBase },
		},
		fieldDefault{
			key:   "costs.slippage.slip_k",
			need:  func() bool { return c.Slippage.SlipK <= 0 },
			apply: func() { c.Slippage.SlipK = defaultSlipK },
		},
		fieldDefault{
			key:   "costs.slippage.spike_tr_atr_th",
			need:  func() bool { return c.Slippage.SpikeTRATRTh <= 0 },
			apply: func() { c.Slippage.SpikeTRATRTh = defaultRegimeSpikeTh },
		},
		fieldDefault{
			key:   "costs.slippage.spike_mult",
			need:  func() bool { return c.Slippage.SpikeMult <= 0 },
			apply: func() { c.Slippage.SpikeMult = defaultSpikeMult },
		},
	)
}

// SpreadPips 返回品种的基础点差，未配置时用通用默认。
func (c *CostsConfig) SpreadPips(symbol string) float64 {
	if v, ok := c.SpreadBaselinePips[symbol]; ok && v > 0 {
		return v
	}
	return defaultSpreadPips
}

func (t *TuningConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "tuning.top_k",
			need:  func() bool { return t.TopK <= 0 },
			apply: func() { t.TopK = defaultTuningTopK },
		},
		fieldDefault{
			key:   "tuning.workers",
			need:  func() bool { return t.Workers <= 0 },
			apply: func() { t.Workers = DefaultWorkers() },
		},
		fieldDefault{
			key:   "tuning.min_trades",
			need:  func() bool { return t.MinTrades <= 0 },
			apply: func() { t.MinTrades = defaultTuningMinTrades },
		},
		fieldDefault{
			key:   "tuning.penalty",
			need:  func() bool { return t.Penalty <= 0 },
			apply: func() { t.Penalty = defaultTuningPenalty },
		},
		stringFieldDefault("tuning.tune_scenario", &t.TuneScenario, defaultTuningScenario),
		fieldDefault{
			key:   "tuning.progress_every",
			need:  func() bool { return t.ProgressEvery <= 0 },
			apply: func() { t.ProgressEvery = defaultTuningProgressEvery },
		},
		boolFieldDefault("tuning.show_eta", &t.ShowETA, true),
		boolFieldDefault("tuning.two_stage", &t.TwoStage, true),
	)
	t.TuneScenario = strings.ToUpper(strings.TrimSpace(t.TuneScenario))
	if t.Grid == nil {
		t.Grid = make(map[string][]float64)
	}
	for name, values := range DefaultGrid() {
		if _, ok := t.Grid[name]; !ok {
			t.Grid[name] = values
		}
	}
}

func (o *OutputsConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("outputs.runs_dir", &o.RunsDir, defaultRunsDir),
		stringFieldDefault("outputs.db_path", &o.DBPath, defaultDBPath),
		boolFieldDefault("outputs.write_trades_csv", &o.WriteTradesCSV, true),
		boolFieldDefault("outputs.write_report_json", &o.WriteReportJSON, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
