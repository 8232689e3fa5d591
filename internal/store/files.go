package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"fxdesk/internal/backtest"
	"fxdesk/internal/tuning"
)

// WriteRunFiles 把一次搜索的结果落成文件：
//
//	<dir>/<run_id>/tuning_results.csv|.json   阶段一全量（按名次）
//	<dir>/<run_id>/top_k.csv|.json            前 K 名（两阶段时含全场景得分）
//	<dir>/<run_id>/meta.json                  网格规模、耗时、成功/失败数
func WriteRunFiles(dir string, sum *tuning.RunSummary) error {
	runDir := filepath.Join(dir, sum.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}

	if err := writeResultsCSV(filepath.Join(runDir, "tuning_results.csv"), sum.Stage1); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(runDir, "tuning_results.json"), sum.Stage1); err != nil {
		return err
	}

	finalists := sum.TopK
	if len(sum.Stage2) > 0 {
		finalists = sum.Stage2
	}
	if err := writeResultsCSV(filepath.Join(runDir, "top_k.csv"), finalists); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(runDir, "top_k.json"), finalists); err != nil {
		return err
	}

	return writeJSON(filepath.Join(runDir, "meta.json"), sum)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResultsCSV(path string, results []tuning.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	options := comboOptions(results)
	header := []string{"rank", "grid_index"}
	header = append(header, options...)
	for _, sc := range backtest.CanonicalScenarioOrder {
		header = append(header, "score_"+sc, "trades_"+sc)
	}
	header = append(header, "composite", "err")
	if err := w.Write(header); err != nil {
		return err
	}

	for rank, res := range results {
		row := []string{strconv.Itoa(rank + 1), strconv.Itoa(res.Index)}
		for _, opt := range options {
			if v, ok := res.Combo[opt]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		for _, sc := range backtest.CanonicalScenarioOrder {
			if score, ok := res.Scores[sc]; ok {
				row = append(row, formatFloat(score), strconv.Itoa(res.Trades[sc]))
			} else {
				row = append(row, "", "")
			}
		}
		row = append(row, formatFloat(res.Composite), res.Err)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// comboOptions 收集结果集中出现过的全部网格选项名，字典序。
func comboOptions(results []tuning.Result) []string {
	seen := make(map[string]bool)
	for _, res := range results {
		for opt := range res.Combo {
			seen[opt] = true
		}
	}
	out := make([]string, 0, len(seen))
	for opt := range seen {
		out = append(out, opt)
	}
	sort.Strings(out)
	return out
}

func formatFloat(v float64) string {
	if v != v {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTradesCSV 落一份逐笔交易明细。
func WriteTradesCSV(path string, trades []backtest.Trade) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"symbol", "scenario", "strategy", "side",
		"entry_time", "exit_time", "entry_price", "exit_price",
		"qty", "sl_price", "tp_price", "pnl_pips", "pnl", "exit_reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, tr := range trades {
		row := []string{
			tr.Symbol, tr.Scenario, tr.Strategy, string(tr.Side),
			tr.EntryTime.UTC().Format("2006-01-02 15:04:05"),
			tr.ExitTime.UTC().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.5f", tr.EntryPrice),
			fmt.Sprintf("%.5f", tr.ExitPrice),
			formatFloat(tr.Qty),
			fmt.Sprintf("%.5f", tr.SLPrice),
			fmt.Sprintf("%.5f", tr.TPPrice),
			fmt.Sprintf("%.2f", tr.PnLPips),
			fmt.Sprintf("%.2f", tr.PnL),
			tr.ExitReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteReportJSON 落一份回测报告。
func WriteReportJSON(path string, report *backtest.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, report)
}
