package signal

import (
	"fmt"
	"sort"

	"fxdesk/internal/config"
	"fxdesk/internal/feature"
)

// Strategy 是信号引擎的策略接口：声明所需特征窗口，
// 并在指定 K 线上产出带标签的 Intent。实现必须无状态，
// 同一实例会被多个 goroutine 并发使用。
type Strategy interface {
	ID() string
	FeatureParams(p config.StrategyParams) feature.Params
	Evaluate(fs *feature.Set, p config.StrategyParams, i, lastExitIdx int) Intent
}

// registry 是封闭的策略表：进程启动时即固定，不支持运行期注册。
var registry = map[string]Strategy{
	DonchianBreakoutID: donchianBreakout{},
}

// Resolve 按 ID 取策略，未注册的 ID 返回错误。
func Resolve(id string) (Strategy, error) {
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s (registered: %v)", id, Registered())
	}
	return s, nil
}

// Registered 返回全部已注册策略 ID，按字典序。
func Registered() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
