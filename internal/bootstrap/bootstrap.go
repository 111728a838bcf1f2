package bootstrap

import (
	"context"
	"fmt"

	"meal-guardrails/internal/api/handlers/health"
	"meal-guardrails/internal/core/cache"
	"meal-guardrails/internal/core/guardrails"
	"meal-guardrails/internal/core/scoring"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/infrastructure/database"
	"meal-guardrails/internal/infrastructure/supabase"
	"meal-guardrails/internal/pkg/common"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 依設定組裝好的服務
type Services struct {
	Guardrails  *guardrails.Service
	Scoring     *scoring.Service
	ReadyChecks map[string]health.ReadyCheck

	db    *gorm.DB
	cache cache.Store
}

// Build 依資料來源與快取設定建立服務
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{ReadyChecks: map[string]health.ReadyCheck{}}

	var (
		repo    guardrails.Repo
		history scoring.HistoryStore
	)
	switch cfg.Database.Driver {
	case config.DriverSupabase:
		client := supabase.NewClient(&cfg.Supabase)
		repo, history = client, client
	default:
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		repo = database.NewGuardrailsRepo(db)
		history = database.NewMealHistoryRepo(db)
		s.ReadyChecks["database"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}

	store, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		// 快取只是加速，無法連線時仍可運作
		common.LogWarn("快取初始化失敗，停用快取", zap.Error(err))
		store = nil
	}
	s.cache = store

	weights := scoring.Weights{
		Rating:    cfg.Scoring.Weights.Rating,
		Nutrition: cfg.Scoring.Weights.Nutrition,
		Variety:   cfg.Scoring.Weights.Variety,
	}
	scoringSvc, err := scoring.NewService(history, weights, scoring.WithWorkers(cfg.Scoring.BatchWorkers))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init scoring service: %w", err)
	}

	s.Scoring = scoringSvc
	s.Guardrails = guardrails.NewService(repo, store)

	common.LogInfo("服務已初始化",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("cache_enabled", store != nil),
		zap.String("cache_backend", cfg.Cache.Backend),
	)
	return s, nil
}

// DB 關聯式資料庫連線，使用託管後端時為 nil
func (s *Services) DB() *gorm.DB {
	return s.db
}

// Close 釋放快取與資料庫連線
func (s *Services) Close() error {
	var err error
	if s.cache != nil {
		err = multierr.Append(err, s.cache.Close())
	}
	if s.db != nil {
		err = multierr.Append(err, database.Close(s.db))
	}
	return err
}
