package tuning

import (
	"fmt"
	"math"
	"sync"
	"time"

	"fxdesk/internal/logger"
)

// ProgressSnapshot 是某一时刻的搜索进度，供进度行和 HTTP
// 接口共用。
type ProgressSnapshot struct {
	Stage     string        `json:"stage"`
	Done      int           `json:"done"`
	Total     int           `json:"total"`
	Failed    int           `json:"failed"`
	BestScore float64       `json:"best_score"`
	HasBest   bool          `json:"has_best"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	ETA       time.Duration `json:"eta_ns"`
	Finished  bool          `json:"finished"`
}

// progressTracker 汇总进度并按节奏输出进度行。
// 只有结果消费者这一个写者，读者（HTTP）通过 Snapshot 加锁读。
type progressTracker struct {
	mu       sync.Mutex
	stage    string
	done     int
	total    int
	failed   int
	best     float64
	hasBest  bool
	started  time.Time
	every    int
	showETA  bool
	finished bool
}

func newProgressTracker(every int, showETA bool) *progressTracker {
	if every <= 0 {
		every = 1
	}
	return &progressTracker{best: math.Inf(-1), every: every, showETA: showETA}
}

// StartStage 重置计数并开始一个新阶段的计时。
func (p *progressTracker) StartStage(stage string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.done = 0
	p.total = total
	p.started = time.Now()
	p.finished = false
}

// Record 记录一个完成的组合，达到输出节奏或收尾时打进度行。
func (p *progressTracker) Record(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if res.Failed() {
		p.failed++
	} else if score := res.Composite; !math.IsNaN(score) && score > p.best {
		p.best = score
		p.hasBest = true
	}
	if p.done%p.every == 0 || p.done == p.total {
		p.emitLocked()
	}
}

// FinishStage 标记阶段完成并补一条最终进度行。
func (p *progressTracker) FinishStage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
	if p.total > 0 && p.done%p.every != 0 && p.done != p.total {
		p.emitLocked()
	}
}

// Snapshot 返回当前进度的拷贝。
func (p *progressTracker) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := ProgressSnapshot{
		Stage:     p.stage,
		Done:      p.done,
		Total:     p.total,
		Failed:    p.failed,
		BestScore: p.best,
		HasBest:   p.hasBest,
		Finished:  p.finished,
	}
	if !p.started.IsZero() {
		snap.Elapsed = time.Since(p.started)
		snap.ETA = etaFor(snap.Elapsed, p.done, p.total)
	}
	return snap
}

func (p *progressTracker) emitLocked() {
	elapsed := time.Since(p.started)
	pct := 0.0
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	best := "n/a"
	if p.hasBest {
		best = fmt.Sprintf("%.4f", p.best)
	}
	if p.showETA {
		eta := etaFor(elapsed, p.done, p.total)
		logger.Progressf("[tuning] %d/%d (%.1f%%) elapsed=%s eta=%s best_score=%s",
			p.done, p.total, pct, formatClock(elapsed), formatClock(eta), best)
		return
	}
	logger.Progressf("[tuning] %d/%d (%.1f%%) elapsed=%s best_score=%s",
		p.done, p.total, pct, formatClock(elapsed), best)
}

// etaFor 按已完成比例线性外推剩余时间。
func etaFor(elapsed time.Duration, done, total int) time.Duration {
	if done <= 0 || total <= done {
		return 0
	}
	perItem := elapsed / time.Duration(done)
	return perItem * time.Duration(total-done)
}

// formatClock 输出 HH:MM:SS。
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
