package signal

// Side 表示信号方向。
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
	Flat  Side = "FLAT"
)

// Intent 是一次门禁级联在某根 K 线上的评估结果。
// 这是一个带标签的显式结果类型：Flat 不是异常，失败的门禁
// 名称记录在 Tags 里，调用方按 Side 分支处理。
type Intent struct {
	Strategy string
	Symbol   string
	Side     Side
	Index    int               // 产生信号的 K 线下标
	SLPips   float64           // Side != Flat 时必须 > 0
	TPPips   float64           // 0 表示未配置止盈
	Tags     map[string]string // 诊断标签，按门禁记录通过/拒绝原因
}

// HasTP 报告该信号是否携带止盈距离。
func (it Intent) HasTP() bool { return it.TPPips > 0 }

func flatIntent(strategy, symbol string, idx int, tags map[string]string) Intent {
	return Intent{Strategy: strategy, Symbol: symbol, Side: Flat, Index: idx, Tags: tags}
}
