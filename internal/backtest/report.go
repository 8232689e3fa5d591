package backtest

// Report 是一次回测的完整结果：按场景分桶的交易与指标，
// 外加跨场景汇总。场景键只包含本次实际运行的场景。
type Report struct {
	Strategy   string             `json:"strategy"`
	Scenarios  []string           `json:"scenarios"`
	ByScenario map[string]Metrics `json:"by_scenario"`
	Overall    Metrics            `json:"overall"`
	Trades     []Trade            `json:"trades,omitempty"`
}

// ScenarioMetrics 取某场景的指标，场景未运行时 ok=false。
func (r *Report) ScenarioMetrics(id string) (Metrics, bool) {
	m, ok := r.ByScenario[id]
	return m, ok
}

// ScenarioTrades 过滤出某场景的交易，保持完成顺序。
func (r *Report) ScenarioTrades(id string) []Trade {
	var out []Trade
	for _, tr := range r.Trades {
		if tr.Scenario == id {
			out = append(out, tr)
		}
	}
	return out
}
