package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"fxdesk/internal/backtest"
	"fxdesk/internal/config"
	"fxdesk/internal/logger"
	"fxdesk/internal/market"
	"fxdesk/internal/report"
	"fxdesk/internal/signal"
	"fxdesk/internal/store"
	tuninghttp "fxdesk/internal/transport/http"
	"fxdesk/internal/tuning"
)

func main() {
	defaultCfg := os.Getenv("FXDESK_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "configs/config.yaml"
	}

	var (
		cfgPath       = flag.String("config", defaultCfg, "配置文件路径")
		dataDir       = flag.String("data", "data", "K 线 CSV 目录（<symbol>.csv）")
		mode          = flag.String("mode", "tune", "运行模式：tune 或 backtest")
		scenarios     = flag.String("scenarios", "", "backtest 模式的场景过滤器，如 A,C；空为全部")
		strategyID    = flag.String("strategy", "", "覆盖配置中的策略 ID")
		workers       = flag.Int("workers", 0, "覆盖 tuning.workers")
		maxBars       = flag.Int("bars", 0, "覆盖 tuning.max_bars，只取最近 N 根")
		topK          = flag.Int("top-k", 0, "覆盖 tuning.top_k")
		tuneScenario  = flag.String("tune-scenario", "", "覆盖 tuning.tune_scenario")
		progressEvery = flag.Int("progress-every", 0, "覆盖 tuning.progress_every")
		noETA         = flag.Bool("no-eta", false, "进度行不显示 ETA")
		singleStage   = flag.Bool("single-stage", false, "关闭两阶段搜索")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	applyFlagOverrides(cfg, *strategyID, *workers, *maxBars, *topK, *tuneScenario, *progressEvery, *noETA, *singleStage)

	if cfg.Universe.PipSizesFile != "" {
		if err := market.LoadPipSizes(cfg.Universe.PipSizesFile); err != nil {
			log.Fatalf("加载点值表失败: %v", err)
		}
	}
	barsBySymbol, err := loadBars(*dataDir, cfg.Universe.Symbols)
	if err != nil {
		log.Fatalf("加载行情失败: %v", err)
	}
	logger.Infof("✓ 配置与行情加载完成（symbols=%d，strategy=%s）", len(barsBySymbol), cfg.Tuning.Strategy)

	ctx := context.Background()
	switch *mode {
	case "tune":
		if err := runTune(ctx, cfg, barsBySymbol); err != nil {
			log.Fatalf("参数搜索失败: %v", err)
		}
	case "backtest":
		if err := runBacktest(cfg, barsBySymbol, parseScenarioFilter(*scenarios)); err != nil {
			log.Fatalf("回测失败: %v", err)
		}
	default:
		log.Fatalf("未知模式: %s（支持 tune / backtest）", *mode)
	}
}

func applyFlagOverrides(cfg *config.Config, strategyID string, workers, maxBars, topK int, tuneScenario string, progressEvery int, noETA, singleStage bool) {
	if strategyID != "" {
		cfg.Tuning.Strategy = strategyID
	}
	if cfg.Tuning.Strategy == "" {
		cfg.Tuning.Strategy = signal.DonchianBreakoutID
	}
	if workers > 0 {
		cfg.Tuning.Workers = workers
	}
	if maxBars > 0 {
		cfg.Tuning.MaxBars = maxBars
	}
	if topK > 0 {
		cfg.Tuning.TopK = topK
	}
	if tuneScenario != "" {
		cfg.Tuning.TuneScenario = strings.ToUpper(tuneScenario)
	}
	if progressEvery > 0 {
		cfg.Tuning.ProgressEvery = progressEvery
	}
	if noETA {
		cfg.Tuning.ShowETA = false
	}
	if singleStage {
		cfg.Tuning.TwoStage = false
	}
}

func parseScenarioFilter(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadBars(dir string, symbols []string) (map[string][]market.Bar, error) {
	out := make(map[string][]market.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := market.LoadBarsCSV(sym, filepath.Join(dir, sym+".csv"))
		if err != nil {
			return nil, err
		}
		out[sym] = bars
	}
	return out, nil
}

func runTune(ctx context.Context, cfg *config.Config, barsBySymbol map[string][]market.Bar) error {
	coord, err := tuning.NewCoordinator(barsBySymbol, cfg)
	if err != nil {
		return err
	}

	var srv *tuninghttp.Server
	if cfg.App.HTTPAddr != "" {
		srv, err = tuninghttp.NewServer(cfg.App.HTTPAddr, coord)
		if err != nil {
			return err
		}
		srv.Start()
		defer srv.Shutdown(ctx)
	}

	sum, err := coord.Run(ctx)
	if err != nil {
		return err
	}
	if srv != nil {
		srv.SetSummary(sum)
	}

	if err := store.WriteRunFiles(cfg.Outputs.RunsDir, sum); err != nil {
		return err
	}
	if cfg.Outputs.WriteChart {
		chartPath := filepath.Join(cfg.Outputs.RunsDir, sum.RunID, "tuning.html")
		if err := report.WriteTuningChart(chartPath, sum); err != nil {
			logger.Warnf("生成图表失败: %v", err)
		}
	}
	db, err := store.New(cfg.Outputs.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SaveSummary(sum); err != nil {
		return err
	}
	logger.Infof("✓ 搜索完成，结果已写入 %s", filepath.Join(cfg.Outputs.RunsDir, sum.RunID))
	return nil
}

func runBacktest(cfg *config.Config, barsBySymbol map[string][]market.Bar, filter []string) error {
	rep, err := backtest.Run(barsBySymbol, cfg, cfg.Tuning.Strategy, filter)
	if err != nil {
		return err
	}
	for _, sc := range rep.Scenarios {
		m := rep.ByScenario[sc]
		logger.Infof("scenario %s: trades=%d net=%.2f pf=%.3f dd=%.2f", sc, m.Trades, m.NetPnL, m.ProfitFactor, m.MaxDrawdown)
	}
	if cfg.Outputs.WriteTradesCSV {
		if err := store.WriteTradesCSV(filepath.Join(cfg.Outputs.RunsDir, "trades.csv"), rep.Trades); err != nil {
			return err
		}
	}
	if cfg.Outputs.WriteReportJSON {
		if err := store.WriteReportJSON(filepath.Join(cfg.Outputs.RunsDir, "report.json"), rep); err != nil {
			return err
		}
	}
	return nil
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
