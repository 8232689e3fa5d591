package tuning

import "sort"

// Combo 是一组候选参数：网格选项名到取值的映射。
type Combo map[string]float64

// BuildGrid 把每个选项的候选值列表展开成全量笛卡尔积。
// 选项按字典序排列，最后一个选项变化最快，同一份网格配置
// 生成的组合顺序完全确定，组合下标即网格生成序号。
func BuildGrid(grid map[string][]float64) []Combo {
	names := make([]string, 0, len(grid))
	for name := range grid {
		if len(grid[name]) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	total := 1
	for _, name := range names {
		total *= len(grid[name])
	}

	combos := make([]Combo, 0, total)
	idx := make([]int, len(names))
	for {
		combo := make(Combo, len(names))
		for i, name := range names {
			combo[name] = grid[name][idx[i]]
		}
		combos = append(combos, combo)

		// 里程计进位：末位选项先走完一轮。
		pos := len(names) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(grid[names[pos]]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// GridSize 返回网格的组合总数，不实际展开。
func GridSize(grid map[string][]float64) int {
	total := 1
	counted := false
	for _, values := range grid {
		if len(values) == 0 {
			continue
		}
		total *= len(values)
		counted = true
	}
	if !counted {
		return 0
	}
	return total
}
