package guardrails

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"meal-guardrails/internal/core/cache"
	"meal-guardrails/internal/infrastructure/metrics"
	"meal-guardrails/internal/pkg/common"

	"go.uber.org/zap"
)

// Service 規則集服務，在載入器外加上快取、日誌與指標
type Service struct {
	repo  Repo
	cache cache.Store
}

// NewService 創建規則集服務；store 可為 nil
func NewService(repo Repo, store cache.Store) *Service {
	return &Service{repo: repo, cache: store}
}

// CacheKey 規則集快取鍵，各段經過跳脫，不會因 ':' 而互相混淆
func CacheKey(dietID string, mode Mode, locale string) string {
	return fmt.Sprintf("guardrails:%s:%s:%s",
		url.QueryEscape(dietID), url.QueryEscape(string(mode)), url.QueryEscape(locale))
}

// Load 取得規則集，先查快取
//
// 快取讀寫失敗只記錄日誌，不影響結果。
func (s *Service) Load(ctx context.Context, dietID string, mode Mode, locale string) (*Ruleset, error) {
	if dietID == "" {
		return nil, common.NewValidationError("dietId is required")
	}
	if mode == "" {
		mode = ModeRecipeAdaptation
	}
	key := CacheKey(dietID, mode, locale)

	if rs, ok := s.fromCache(ctx, key); ok {
		return rs, nil
	}

	start := time.Now()
	rs, err := LoadRuleset(ctx, s.repo, dietID, mode, WithLocale(locale))
	if err != nil {
		metrics.IncRulesetLoadError()
		common.LogError("規則集載入失敗",
			zap.String("diet_id", dietID),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return nil, err
	}
	elapsed := time.Since(start)
	metrics.ObserveRulesetLoad(rs.Provenance.Source, elapsed)

	if rs.Provenance.Source == SourceFallback {
		common.LogWarn("規則集使用內建預設",
			zap.String("diet_id", dietID),
			zap.String("mode", string(mode)),
			zap.String("reason", rs.Provenance.Metadata.Reason),
		)
	} else {
		common.LogInfo("規則集已載入",
			zap.String("diet_id", dietID),
			zap.String("mode", string(mode)),
			zap.Int("rules", len(rs.Rules)),
			zap.String("content_hash", rs.ContentHash),
			zap.Duration("duration", elapsed),
		)
	}

	s.toCache(ctx, key, rs)
	return rs, nil
}

// Invalidate 移除快取的規則集
func (s *Service) Invalidate(ctx context.Context, dietID string, mode Mode, locale string) error {
	if s.cache == nil {
		return nil
	}
	if mode == "" {
		mode = ModeRecipeAdaptation
	}
	return s.cache.Delete(ctx, CacheKey(dietID, mode, locale))
}

// Evaluate 載入規則集並檢查草稿
func (s *Service) Evaluate(ctx context.Context, dietID string, mode Mode, locale string, draft Draft) (*Evaluation, error) {
	rs, err := s.Load(ctx, dietID, mode, locale)
	if err != nil {
		return nil, err
	}
	ev := Evaluate(rs, MapDraftToTargets(draft, locale))
	return &ev, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (*Ruleset, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取規則集快取失敗", zap.String("key", key), zap.Error(err))
		}
		metrics.IncRulesetCache(false)
		return nil, false
	}

	var rs Ruleset
	if err := common.ParseJSON(raw, &rs); err != nil {
		common.LogWarn("規則集快取內容無效", zap.String("key", key), zap.Error(err))
		metrics.IncRulesetCache(false)
		return nil, false
	}
	metrics.IncRulesetCache(true)
	return &rs, true
}

func (s *Service) toCache(ctx context.Context, key string, rs *Ruleset) {
	if s.cache == nil {
		return
	}
	raw, err := common.ToJSON(rs)
	if err != nil {
		common.LogWarn("序列化規則集失敗", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		common.LogWarn("寫入規則集快取失敗", zap.String("key", key), zap.Error(err))
	}
}
