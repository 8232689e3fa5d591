package backtest

import (
	"fmt"

	"fxdesk/internal/config"
)

// Scenario 是一套成本假设。所有回测结果都按场景分桶，
// 不存在无场景的结果。
type Scenario struct {
	ID          string
	SpreadMult  float64 // 基础点差倍数
	SlipMult    float64 // 滑点倍数
	SlipAddPips float64 // 单边额外固定滑点
	SpikeAware  bool    // TR/ATR 超限时追加滑点惩罚
}

// 三套固定成本场景：A 基线、B 偏保守、C 恶劣（含 spike 惩罚）。
var scenarioTable = map[string]Scenario{
	"A": {ID: "A", SpreadMult: 1.0, SlipMult: 1.0, SlipAddPips: 0.0},
	"B": {ID: "B", SpreadMult: 1.3, SlipMult: 1.0, SlipAddPips: 0.3},
	"C": {ID: "C", SpreadMult: 1.6, SlipMult: 1.8, SpikeAware: true},
}

// CanonicalScenarioOrder 是场景的固定输出顺序。
var CanonicalScenarioOrder = []string{"A", "B", "C"}

// ResolveScenarios 把场景过滤器规整成规范顺序的场景列表。
// 空过滤器表示全部场景；未知场景 ID 报错。
func ResolveScenarios(filter []string) ([]Scenario, error) {
	want := make(map[string]bool, len(filter))
	for _, id := range filter {
		if _, ok := scenarioTable[id]; !ok {
			return nil, fmt.Errorf("unknown cost scenario: %s", id)
		}
		want[id] = true
	}
	out := make([]Scenario, 0, len(scenarioTable))
	for _, id := range CanonicalScenarioOrder {
		if len(want) == 0 || want[id] {
			out = append(out, scenarioTable[id])
		}
	}
	return out, nil
}

// costModel 把场景和滑点配置折算成单边成本（点数）。
type costModel struct {
	scenario Scenario
	slip     config.SlippageConfig
	spread   float64 // 品种基础点差
}

func newCostModel(sc Scenario, costs *config.CostsConfig, symbol string) costModel {
	return costModel{scenario: sc, slip: costs.Slippage, spread: costs.SpreadPips(symbol)}
}

// perSidePips 计算一次成交的单边成本：半点差加滑点。
// trATRRatio 是成交那根 K 线的 TR 与参考 ATR 的比值，比值越高
// 滑点越大；spike 场景在比值超限时再乘惩罚倍数，固定滑点加项
// 在倍数之后进来。
func (m costModel) perSidePips(trATRRatio float64) float64 {
	if trATRRatio < 0 {
		trATRRatio = 0
	}
	spread := m.spread * m.scenario.SpreadMult
	slip := m.slip.SlipBase + m.slip.SlipK*trATRRatio
	if m.scenario.SpikeAware && trATRRatio > m.slip.SpikeTRATRTh {
		slip *= m.slip.SpikeMult
	}
	slip = slip*m.scenario.SlipMult + m.scenario.SlipAddPips
	return spread/2 + slip
}
