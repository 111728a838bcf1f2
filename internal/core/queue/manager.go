package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/infrastructure/metrics"
	"meal-guardrails/internal/pkg/common"

	"go.uber.org/zap"
)

// Handler 處理一位使用者的重新評分
type Handler func(ctx context.Context, userID string) (*scoring.BatchResult, error)

// Request 隊列請求
type Request struct {
	ID      string
	Context context.Context
	UserID  string
	Result  chan Result
}

// Result 處理結果
type Result struct {
	JobID string
	Batch *scoring.BatchResult
	Error error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 重新評分隊列
type Manager struct {
	config    *config.Config
	handler   Handler
	queue     chan *Request
	processed int64
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewManager 創建隊列並啟動 worker
func NewManager(cfg *config.Config, handler Handler) *Manager {
	m := &Manager{
		config:  cfg,
		handler: handler,
		queue:   make(chan *Request, cfg.Queue.MaxSize),
	}

	workers := cfg.Queue.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	common.LogInfo("隊列管理員已啟動",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", cfg.Queue.MaxSize),
	)
	return m
}

// Enqueue 將重新評分工作加入隊列；隊列已滿時立即回傳 ErrQueueFull
func (m *Manager) Enqueue(ctx context.Context, userID string) (<-chan Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, common.ErrQueueClosed
	}

	req := &Request{
		ID:      common.GenerateUUID(),
		Context: ctx,
		UserID:  userID,
		Result:  make(chan Result, 1),
	}

	select {
	case m.queue <- req:
		metrics.SetQueueDepth(len(m.queue))
		common.LogDebug("重新評分工作已加入隊列",
			zap.String("job_id", req.ID),
			zap.String("user_id", userID),
			zap.Int("queue_length", len(m.queue)),
		)
		return req.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		common.LogWarn("隊列已滿",
			zap.String("user_id", userID),
			zap.Int("max_queue_size", m.config.Queue.MaxSize),
		)
		return nil, common.ErrQueueFull
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()

	for req := range m.queue {
		metrics.SetQueueDepth(len(m.queue))

		res := Result{JobID: req.ID}
		if err := req.Context.Err(); err != nil {
			res.Error = err
		} else {
			res.Batch, res.Error = m.handler(req.Context, req.UserID)
		}
		if res.Error != nil {
			common.LogError("重新評分工作失敗",
				zap.Int("worker", id),
				zap.String("job_id", req.ID),
				zap.String("user_id", req.UserID),
				zap.Error(res.Error),
			)
		}

		atomic.AddInt64(&m.processed, 1)
		req.Result <- res
	}
}

// GetQueueStatus 取得隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.config.Queue.MaxSize,
		Workers:        m.config.Queue.Workers,
	}
}

// Close 停止接收新工作並等待已排入的工作完成
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	metrics.SetQueueDepth(0)
	common.LogInfo("隊列管理員已關閉", zap.Int64("processed", atomic.LoadInt64(&m.processed)))
}
