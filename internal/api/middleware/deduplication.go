package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"
)

const defaultDedupWindow = time.Second

// Deduplicator 記錄近期 POST 請求指紋，同一客戶端在窗口內重送相同內容時拒絕
type Deduplicator struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewDeduplicator 創建去重器
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &Deduplicator{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Seen 檢查並記錄指紋，窗口內已出現過時回傳 true
func (d *Deduplicator) Seen(fingerprint string) bool {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// 過期指紋每隔 10 個窗口清一次
	if now.Sub(d.lastSweep) > 10*d.window {
		for k, t := range d.seen {
			if now.Sub(t) > d.window {
				delete(d.seen, k)
			}
		}
		d.lastSweep = now
	}

	if last, ok := d.seen[fingerprint]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.seen[fingerprint] = now
	return false
}

// Middleware 請求去重中間件
func (d *Deduplicator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					common.WriteError(c, common.Wrap(errBodyTooLarge, fmt.Errorf("max %d bytes", tooLarge.Limit)))
					return
				}
				common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		if d.Seen(fingerprint(c.ClientIP(), c.Request.URL.RequestURI(), body)) {
			common.LogDebug("重複請求已略過",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			common.WriteError(c, common.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}

func fingerprint(clientIP, uri string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(clientIP), []byte(uri), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Deduplication 依設定的 dedup_window 建立去重中間件
func Deduplication(cfg *config.Config) gin.HandlerFunc {
	window := defaultDedupWindow
	if cfg != nil && cfg.DedupWindow > 0 {
		window = cfg.DedupWindow
	}
	return NewDeduplicator(window).Middleware()
}
