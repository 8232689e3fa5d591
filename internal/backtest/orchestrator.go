package backtest

import (
	"fmt"
	"sort"

	"fxdesk/internal/config"
	"fxdesk/internal/feature"
	"fxdesk/internal/logger"
	"fxdesk/internal/market"
	"fxdesk/internal/signal"
)

// Run 执行一次完整回测：对每个品种只算一遍特征，再按规范
// 顺序（A、B、C）跑过滤器命中的每个成本场景。scenarioFilter
// 为空表示全部场景；过滤器的传入顺序不影响输出顺序。
// 数据或配置的结构性问题直接返回错误，不产出部分结果。
func Run(barsBySymbol map[string][]market.Bar, cfg *config.Config, strategyID string, scenarioFilter []string) (*Report, error) {
	strat, err := signal.Resolve(strategyID)
	if err != nil {
		return nil, err
	}
	params, ok := cfg.Strategies.Params[strategyID]
	if !ok {
		return nil, fmt.Errorf("strategy %s has no configured params", strategyID)
	}
	scenarios, err := ResolveScenarios(scenarioFilter)
	if err != nil {
		return nil, err
	}

	symbols := cfg.Universe.Symbols
	if len(symbols) == 0 {
		for sym := range barsBySymbol {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
	}

	fp := strat.FeatureParams(params)
	rp := feature.RegimeParams{
		Window:         cfg.Regime.ATRPctWindow,
		ATRPeriod:      cfg.Regime.ATRPctN,
		ZLow:           cfg.Regime.ZLow,
		ZHigh:          cfg.Regime.ZHigh,
		SpikeThreshold: cfg.Regime.SpikeTRATRTh,
	}

	featureSets := make(map[string]*feature.Set, len(symbols))
	for _, sym := range symbols {
		bars, ok := barsBySymbol[sym]
		if !ok {
			return nil, &market.ContractError{Symbol: sym, Reason: "no bar data"}
		}
		if err := market.ValidateSeries(sym, bars, 2); err != nil {
			return nil, err
		}
		fs, err := feature.Compute(sym, bars, fp, rp)
		if err != nil {
			return nil, err
		}
		featureSets[sym] = fs
	}

	report := &Report{
		Strategy:   strategyID,
		ByScenario: make(map[string]Metrics, len(scenarios)),
	}
	for _, sc := range scenarios {
		var scTrades []Trade
		for _, sym := range symbols {
			cm := newCostModel(sc, &cfg.Costs, sym)
			trades := runScenario(barsBySymbol[sym], featureSets[sym], strat, params, cfg.Risk, cm, sc.ID)
			scTrades = append(scTrades, trades...)
		}
		report.Scenarios = append(report.Scenarios, sc.ID)
		report.ByScenario[sc.ID] = ComputeMetrics(scTrades)
		report.Trades = append(report.Trades, scTrades...)
		if cfg.Outputs.Debug {
			logger.Debugf("scenario %s finished: trades=%d net=%.2f", sc.ID, len(scTrades), report.ByScenario[sc.ID].NetPnL)
		}
	}
	report.Overall = ComputeMetrics(report.Trades)
	return report, nil
}
