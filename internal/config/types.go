package config

// Config 是 fxdesk 的主配置载体。
type Config struct {
	App         AppConfig         `toml:"app"`
	Universe    UniverseConfig    `toml:"universe"`
	BarContract BarContractConfig `toml:"bar_contract"`
	Regime      RegimeConfig      `toml:"regime"`
	Strategies  StrategiesConfig  `toml:"strategies"`
	Risk        RiskConfig        `toml:"risk"`
	Costs       CostsConfig       `toml:"costs"`
	Tuning      TuningConfig      `toml:"tuning"`
	Outputs     OutputsConfig     `toml:"outputs"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"` // 为空则不起进度 HTTP 服务
}

type UniverseConfig struct {
	Symbols      []string `toml:"symbols"`
	Timeframe    string   `toml:"timeframe"`
	PipSizesFile string   `toml:"pip_sizes_file"` // 可选的品种点值表（YAML）
}

// BarContractConfig 固定信号/成交时点约定，偏离即为结构性错误。
type BarContractConfig struct {
	SignalOn  string `toml:"signal_on"` // 只允许 close
	FillOn    string `toml:"fill_on"`   // 只允许 open_next
	AllowBar0 bool   `toml:"allow_bar0"`
}

type RegimeConfig struct {
	ATRPctWindow int     `toml:"atr_pct_window"`
	ATRPctN      int     `toml:"atr_pct_n"`
	ZLow         float64 `toml:"z_low"`
	ZHigh        float64 `toml:"z_high"`
	SpikeTRATRTh float64 `toml:"spike_tr_atr_th"`
}

type StrategiesConfig struct {
	Enabled []string                  `toml:"enabled"`
	Params  map[string]StrategyParams `toml:"params"`
}

// StrategyParams 是单个策略的全部可调参数，键名与调参网格的
// 选项名一一对应。
type StrategyParams struct {
	EMAFast           int      `toml:"ema_fast"`
	EMASlow           int      `toml:"ema_slow"`
	ATRPeriod         int      `toml:"atr_period"`
	ADXPeriod         int      `toml:"adx_period"`
	ADXTh             float64  `toml:"adx_th"`
	ADXRising         bool     `toml:"adx_rising"`
	BreakoutWindow    int      `toml:"breakout_window"`
	BufferATR         float64  `toml:"buffer_atr"`
	AllowedVolRegimes []string `toml:"allowed_vol_regimes"`
	SpikeBlock        bool     `toml:"spike_block"`
	CooldownBars      int      `toml:"cooldown_bars"`
	KSL               float64  `toml:"k_sl"`
	MinSLPoints       float64  `toml:"min_sl_points"`
	KTP               float64  `toml:"k_tp"` // 0 表示不设止盈
	MinTPPoints       float64  `toml:"min_tp_points"`
}

type RiskConfig struct {
	RBase       float64 `toml:"r_base"`
	MaxHoldBars int     `toml:"max_hold_bars"`
}

type CostsConfig struct {
	SpreadBaselinePips map[string]float64 `toml:"spread_baseline_pips"`
	Slippage           SlippageConfig     `toml:"slippage"`
}

type SlippageConfig struct {
	SlipBase     float64 `toml:"slip_base"`
	SlipK        float64 `toml:"slip_k"`
	SpikeTRATRTh float64 `toml:"spike_tr_atr_th"`
	SpikeMult    float64 `toml:"spike_mult"`
}

// TuningConfig 控制两阶段参数搜索。
type TuningConfig struct {
	Strategy        string               `toml:"strategy"`
	Grid            map[string][]float64 `toml:"grid"` // 选项名 -> 候选值列表
	TopK            int                  `toml:"top_k"`
	Workers         int                  `toml:"workers"` // <=0 表示取 NumCPU-1（封顶）
	MinTrades       int                  `toml:"min_trades"`
	Penalty         float64              `toml:"penalty"`
	TuneScenario    string               `toml:"tune_scenario"`
	ProgressEvery   int                  `toml:"progress_every"`
	ShowETA         bool                 `toml:"show_eta"`
	TwoStage        bool                 `toml:"two_stage"`
	ScenarioWeights map[string]float64   `toml:"scenario_weights"` // 为空则等权
	MaxBars         int                  `toml:"max_bars"`         // >0 时只取最近 N 根
}

// fieldDefault 描述单个字段的默认值规则：键未显式配置且
// need 成立时执行 apply。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

type OutputsConfig struct {
	RunsDir         string `toml:"runs_dir"`
	DBPath          string `toml:"db_path"`
	WriteTradesCSV  bool   `toml:"write_trades_csv"`
	WriteReportJSON bool   `toml:"write_report_json"`
	WriteChart      bool   `toml:"write_chart"`
	Debug           bool   `toml:"debug"`
}
