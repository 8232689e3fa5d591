package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"fxdesk/internal/tuning"
)

const (
	colorScore = "#3b82f6"
	colorTopK  = "#34d399"
)

// WriteTuningChart 生成一页搜索结果总览：阶段一得分分布曲线
// 加前 K 名综合分柱状图，输出为独立 HTML。
func WriteTuningChart(path string, sum *tuning.RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(scoreDistribution(sum), topKBars(sum))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

// scoreDistribution 按名次画阶段一综合分，失败组合跳过。
func scoreDistribution(sum *tuning.RunSummary) components.Charter {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Stage-1 scores (run %s)", sum.RunID),
			Subtitle: fmt.Sprintf("grid=%d ok=%d failed=%d", sum.GridSize, sum.Succeeded, sum.Failed),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var xAxis []string
	var data []opts.LineData
	for rank, res := range sum.Stage1 {
		if res.Failed() || math.IsNaN(res.Composite) {
			continue
		}
		xAxis = append(xAxis, strconv.Itoa(rank+1))
		data = append(data, opts.LineData{Value: res.Composite})
	}
	line.SetXAxis(xAxis)
	line.AddSeries("score", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorScore, Width: 2}))
	return line
}

// topKBars 画最终名单的综合分（两阶段取阶段二结果）。
func topKBars(sum *tuning.RunSummary) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top-K composite"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	finalists := sum.TopK
	if len(sum.Stage2) > 0 {
		finalists = sum.Stage2
	}
	var xAxis []string
	var data []opts.BarData
	for _, res := range finalists {
		xAxis = append(xAxis, fmt.Sprintf("#%d", res.Index))
		data = append(data, opts.BarData{Value: res.Composite})
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("composite", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTopK}))
	return bar
}
