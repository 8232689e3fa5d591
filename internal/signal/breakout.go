package signal

import (
	"strings"

	"fxdesk/internal/config"
	"fxdesk/internal/feature"
)

// DonchianBreakoutID 是代表策略（EMA 偏向 + Donchian 突破)的注册 ID。
const DonchianBreakoutID = "s1_trend_breakout_donchian"

// 门禁标签键，诊断输出与测试都按这些键读取拒绝原因。
const (
	tagEMABias      = "ema_bias"
	tagADXGate      = "adx_gate"
	tagRegime       = "regime"
	tagBreakout     = "breakout"
	tagConfirmation = "confirmation"
	tagCooldown     = "cooldown"
)

// donchianBreakout 实现六道门禁的趋势突破策略。
// 门禁严格按顺序评估，任何一道拒绝即短路返回 Flat，
// 后续门禁不再计算。
type donchianBreakout struct{}

func (donchianBreakout) ID() string { return DonchianBreakoutID }

// FeatureParams 报告该策略需要的特征窗口。
func (donchianBreakout) FeatureParams(p config.StrategyParams) feature.Params {
	return feature.Params{
		EMAFast:        p.EMAFast,
		EMASlow:        p.EMASlow,
		ATRPeriod:      p.ATRPeriod,
		ADXPeriod:      p.ADXPeriod,
		BreakoutWindow: p.BreakoutWindow,
	}
}

// Evaluate 在第 i 根收盘处评估信号。lastExitIdx 是该品种最近一次
// 平仓所在的 K 线下标，没有历史平仓时传 -1。
// 任何所需特征在第 i 根未定义都按 Flat 处理，不算错误。
func (donchianBreakout) Evaluate(fs *feature.Set, p config.StrategyParams, i, lastExitIdx int) Intent {
	tags := make(map[string]string, 6)
	flat := func(tag, reason string) Intent {
		tags[tag] = reason
		return flatIntent(DonchianBreakoutID, fs.Symbol(), i, tags)
	}

	// 门禁 1：EMA 偏向。
	emaFast, ok1 := fs.Value(feature.EMAFast, i)
	emaSlow, ok2 := fs.Value(feature.EMASlow, i)
	if !ok1 || !ok2 {
		return flat(tagEMABias, "undefined")
	}
	var side Side
	switch {
	case emaFast > emaSlow:
		side = Long
	case emaFast < emaSlow:
		side = Short
	default:
		return flat(tagEMABias, "no bias")
	}
	tags[tagEMABias] = string(side)

	// 门禁 2：ADX 强度，可选要求较上一根抬升。
	adx, ok := fs.Value(feature.ADX, i)
	if !ok {
		return flat(tagADXGate, "undefined")
	}
	if adx <= p.ADXTh {
		return flat(tagADXGate, "below threshold")
	}
	if p.ADXRising {
		// 上一根 ADX 未定义时视为抬升成立。
		if prev, ok := fs.Value(feature.ADX, i-1); ok && adx <= prev {
			return flat(tagADXGate, "not rising")
		}
	}
	tags[tagADXGate] = "pass"

	// 门禁 3：波动状态准入。
	vol, spike := parseRegime(fs.Regime(i))
	if !regimeAllowed(vol, p.AllowedVolRegimes) {
		return flat(tagRegime, "vol="+vol)
	}
	if p.SpikeBlock && spike {
		return flat(tagRegime, "spike")
	}
	tags[tagRegime] = "pass"

	// 门禁 4：带缓冲的 Donchian 突破。缓冲是价格单位的 buffer_atr*ATR。
	closePx, ok := fs.Value(feature.Close, i)
	if !ok {
		return flat(tagBreakout, "undefined")
	}
	atr, ok := fs.Value(feature.ATR, i)
	if !ok {
		return flat(tagBreakout, "undefined")
	}
	buffer := p.BufferATR * atr
	switch side {
	case Long:
		chHigh, ok := fs.Value(feature.ChannelHigh, i)
		if !ok {
			return flat(tagBreakout, "undefined")
		}
		if closePx <= chHigh+buffer {
			return flat(tagBreakout, "no breakout")
		}
	case Short:
		chLow, ok := fs.Value(feature.ChannelLow, i)
		if !ok {
			return flat(tagBreakout, "undefined")
		}
		if closePx >= chLow-buffer {
			return flat(tagBreakout, "no breakout")
		}
	}
	tags[tagBreakout] = "pass"

	// 门禁 5：首次突破确认——上一根收盘必须仍在上一根的
	// 通道（含缓冲）之内，过滤持续突破中的追单。
	prevClose, ok := fs.Value(feature.Close, i-1)
	if !ok {
		return flat(tagConfirmation, "undefined")
	}
	prevATR, ok := fs.Value(feature.ATR, i-1)
	if !ok {
		return flat(tagConfirmation, "undefined")
	}
	prevBuffer := p.BufferATR * prevATR
	switch side {
	case Long:
		prevHigh, ok := fs.Value(feature.ChannelHigh, i-1)
		if !ok {
			return flat(tagConfirmation, "undefined")
		}
		if prevClose > prevHigh+prevBuffer {
			return flat(tagConfirmation, "already broken out")
		}
	case Short:
		prevLow, ok := fs.Value(feature.ChannelLow, i-1)
		if !ok {
			return flat(tagConfirmation, "undefined")
		}
		if prevClose < prevLow-prevBuffer {
			return flat(tagConfirmation, "already broken out")
		}
	}
	tags[tagConfirmation] = "pass"

	// 门禁 6：距离上次平仓的冷却期，间隔不足冷却根数才拦截。
	if p.CooldownBars > 0 && lastExitIdx >= 0 && i-lastExitIdx < p.CooldownBars {
		return flat(tagCooldown, "cooling down")
	}
	tags[tagCooldown] = "pass"

	atrPips, ok := fs.Value(feature.ATRPips, i)
	if !ok {
		return flat(tagBreakout, "undefined")
	}
	slPips := p.KSL * atrPips
	if slPips < p.MinSLPoints {
		slPips = p.MinSLPoints
	}
	var tpPips float64
	if p.KTP > 0 {
		tpPips = p.KTP * atrPips
		if tpPips < p.MinTPPoints {
			tpPips = p.MinTPPoints
		}
	}
	return Intent{
		Strategy: DonchianBreakoutID,
		Symbol:   fs.Symbol(),
		Side:     side,
		Index:    i,
		SLPips:   slPips,
		TPPips:   tpPips,
		Tags:     tags,
	}
}

// parseRegime 解析 VOL=<X>|SPIKE=<0|1> 注记。
func parseRegime(s string) (vol string, spike bool) {
	vol = "UNKNOWN"
	for _, part := range strings.Split(s, "|") {
		switch {
		case strings.HasPrefix(part, "VOL="):
			vol = strings.TrimPrefix(part, "VOL=")
		case strings.HasPrefix(part, "SPIKE="):
			spike = strings.TrimPrefix(part, "SPIKE=") == "1"
		}
	}
	return vol, spike
}

func regimeAllowed(vol string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, vol) {
			return true
		}
	}
	return false
}
