package market

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PipSizes 是各品种的点值大小；未登记的品种按万分位处理。
var PipSizes = map[string]float64{
	"EURUSD": 0.0001,
	"GBPUSD": 0.0001,
	"USDJPY": 0.01,
}

// LoadPipSizes 从 YAML 文件（品种 -> 点值）合并品种表，
// 非内置品种上新市场时不用改代码。
func LoadPipSizes(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pip sizes: %w", err)
	}
	var table map[string]float64
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return fmt.Errorf("parse pip sizes (%s): %w", path, err)
	}
	for sym, size := range table {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || size <= 0 {
			return fmt.Errorf("pip sizes (%s): invalid entry %q=%v", path, sym, size)
		}
		PipSizes[sym] = size
	}
	return nil
}

const defaultPipSize = 0.0001

// PipSize 返回品种点值。
func PipSize(symbol string) float64 {
	if v, ok := PipSizes[symbol]; ok {
		return v
	}
	return defaultPipSize
}

// ToPips 把价格差换算为点数。
func ToPips(symbol string, priceDelta float64) float64 {
	d := decimal.NewFromFloat(priceDelta).Div(decimal.NewFromFloat(PipSize(symbol)))
	f, _ := d.Float64()
	return f
}

// ToPrice 把点数换算为价格差。成本叠加走 decimal，
// 避免不同平台的浮点误差破坏逐字节可复现性。
func ToPrice(symbol string, pips float64) float64 {
	d := decimal.NewFromFloat(pips).Mul(decimal.NewFromFloat(PipSize(symbol)))
	f, _ := d.Float64()
	return f
}

// ApplyCostPips 在成交价上叠加以点数计的成本：多头抬高、空头压低。
func ApplyCostPips(symbol string, price, costPips float64, long bool) float64 {
	cost := decimal.NewFromFloat(ToPrice(symbol, costPips))
	p := decimal.NewFromFloat(price)
	if long {
		p = p.Add(cost)
	} else {
		p = p.Sub(cost)
	}
	f, _ := p.Float64()
	return f
}
