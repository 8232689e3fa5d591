package tuninghttp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"fxdesk/internal/logger"
	"fxdesk/internal/tuning"
)

// ProgressSource 提供搜索进度快照，由调参协调器实现。
type ProgressSource interface {
	Progress() tuning.ProgressSnapshot
}

// Server 在搜索期间暴露进度与结果的只读 API。
type Server struct {
	addr    string
	source  ProgressSource
	router  *gin.Engine
	httpSrv *http.Server
	mu      sync.RWMutex
	summary *tuning.RunSummary
}

// NewServer 构建进度 HTTP Server。
func NewServer(addr string, source ProgressSource) (*Server, error) {
	if source == nil {
		return nil, errors.New("progress source 不能为空")
	}
	if addr == "" {
		addr = ":9966"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{addr: addr, source: source, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/tuning")
	api.GET("/progress", s.handleProgress)
	api.GET("/results", s.handleResults)
}

func (s *Server) handleProgress(c *gin.Context) {
	snap := s.source.Progress()
	c.JSON(http.StatusOK, gin.H{
		"stage":           snap.Stage,
		"done":            snap.Done,
		"total":           snap.Total,
		"failed":          snap.Failed,
		"best_score":      snap.BestScore,
		"has_best":        snap.HasBest,
		"elapsed_seconds": snap.Elapsed.Seconds(),
		"eta_seconds":     snap.ETA.Seconds(),
		"finished":        snap.Finished,
	})
}

func (s *Server) handleResults(c *gin.Context) {
	s.mu.RLock()
	summary := s.summary
	s.mu.RUnlock()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not finished yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SetSummary 在搜索结束后发布最终结果。
func (s *Server) SetSummary(sum *tuning.RunSummary) {
	s.mu.Lock()
	s.summary = sum
	s.mu.Unlock()
}

// Start 异步启动监听，失败只记日志，不影响搜索本身。
func (s *Server) Start() {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.router}
	go func() {
		logger.Infof("progress http listening on %s", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("progress http stopped: %v", err)
		}
	}()
}

// Shutdown 优雅关停。
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
