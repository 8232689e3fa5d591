package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGridSizeAndOrder(t *testing.T) {
	grid := map[string][]float64{
		"ema_fast": {10, 20},
		"k_sl":     {1.5, 2.0},
		"k_tp":     {1.0, 1.5, 2.0},
	}
	combos := BuildGrid(grid)
	require.Len(t, combos, 12)
	assert.Equal(t, 12, GridSize(grid))

	// 选项按字典序排列，最后一个选项（k_tp）变化最快。
	assert.Equal(t, Combo{"ema_fast": 10, "k_sl": 1.5, "k_tp": 1.0}, combos[0])
	assert.Equal(t, Combo{"ema_fast": 10, "k_sl": 1.5, "k_tp": 1.5}, combos[1])
	assert.Equal(t, Combo{"ema_fast": 10, "k_sl": 1.5, "k_tp": 2.0}, combos[2])
	assert.Equal(t, Combo{"ema_fast": 10, "k_sl": 2.0, "k_tp": 1.0}, combos[3])
	assert.Equal(t, Combo{"ema_fast": 20, "k_sl": 2.0, "k_tp": 2.0}, combos[11])
}

func TestBuildGridDeterministic(t *testing.T) {
	grid := map[string][]float64{
		"a": {1, 2, 3},
		"b": {4, 5},
		"c": {6},
	}
	first := BuildGrid(grid)
	second := BuildGrid(grid)
	require.Equal(t, first, second)
	assert.Len(t, first, 6)
}

func TestBuildGridEmpty(t *testing.T) {
	assert.Nil(t, BuildGrid(nil))
	assert.Zero(t, GridSize(nil))
	// 空候选列表的选项被忽略。
	combos := BuildGrid(map[string][]float64{"a": {1, 2}, "b": {}})
	require.Len(t, combos, 2)
	_, ok := combos[0]["b"]
	assert.False(t, ok)
}
