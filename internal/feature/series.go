package feature

import "math"

// Series 是与 K 线逐根对齐的特征值序列。
// 预热区（历史不足）用 NaN 标记为未定义，调用方必须经 At/Defined
// 判定后再使用，未定义值在信号级别直接视为门禁失败。
type Series struct {
	values []float64
}

// NewSeries 从原始值构造序列，NaN 元素即未定义。
func NewSeries(values []float64) Series {
	return newSeries(append([]float64(nil), values...))
}

func newUndefinedSeries(n int) Series {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return Series{values: vals}
}

func newSeries(values []float64) Series {
	return Series{values: values}
}

func (s Series) Len() int { return len(s.values) }

// At 返回第 i 根对应的特征值；未定义或越界时 ok=false。
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.values) {
		return 0, false
	}
	v := s.values[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Defined 报告第 i 根是否有有效值。
func (s Series) Defined(i int) bool {
	_, ok := s.At(i)
	return ok
}

// maskBefore 把 [0, n) 区间标记为未定义。
func (s Series) maskBefore(n int) Series {
	if n > len(s.values) {
		n = len(s.values)
	}
	for i := 0; i < n; i++ {
		s.values[i] = math.NaN()
	}
	return s
}
