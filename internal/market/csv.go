package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// 可接受的时间列格式，按顺序尝试。
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadBarsCSV 读取 time,open,high,low,close 格式的历史数据。
// 列名大小写不敏感，time 也接受 timestamp；多余列忽略。
func LoadBarsCSV(symbol, path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header (%s): %w", path, err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	timeCol, ok := idx["time"]
	if !ok {
		timeCol, ok = idx["timestamp"]
	}
	if !ok {
		return nil, &ContractError{Symbol: symbol, Reason: "missing time column"}
	}
	for _, col := range []string{"open", "high", "low", "close"} {
		if _, ok := idx[col]; !ok {
			return nil, &ContractError{Symbol: symbol, Reason: fmt.Sprintf("missing required column %q", col)}
		}
	}

	var bars []Bar
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			// 行中途的格式错误不能当 EOF 吞掉，否则序列被静默截断。
			return nil, fmt.Errorf("read csv row at line %d (%s): %w", line, path, err)
		}
		ts, err := parseCSVTime(record[timeCol])
		if err != nil {
			return nil, fmt.Errorf("parse time at line %d (%s): %w", line, path, err)
		}
		bar := Bar{Time: ts}
		for col, dst := range map[string]*float64{
			"open":  &bar.Open,
			"high":  &bar.High,
			"low":   &bar.Low,
			"close": &bar.Close,
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s at line %d (%s): %w", col, line, path, err)
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, &ContractError{Symbol: symbol, Reason: "empty bar series"}
	}
	return bars, nil
}

func parseCSVTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", raw)
}
