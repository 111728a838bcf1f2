package guardrails

import (
	"context"
	"errors"
	"testing"
	"time"

	"meal-guardrails/internal/core/cache"
	"meal-guardrails/internal/infrastructure/config"
	"meal-guardrails/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}

func (brokenStore) Set(context.Context, string, string) error { return errors.New("redis down") }

func (brokenStore) Delete(context.Context, string) error { return errors.New("redis down") }

func (brokenStore) Close() error { return nil }

func newMemoryStore(t *testing.T) cache.Store {
	t.Helper()
	m := cache.NewManager(&config.CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Minute})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestService_LoadUsesCache(t *testing.T) {
	repo := sampleRepo()
	svc := NewService(repo, newMemoryStore(t))
	ctx := context.Background()

	first, err := svc.Load(ctx, "keto", "", "nl")
	require.NoError(t, err)
	assert.Equal(t, int32(3), repo.calls.Load())
	assert.Equal(t, ModeRecipeAdaptation, first.Mode)

	second, err := svc.Load(ctx, "keto", ModeRecipeAdaptation, "nl")
	require.NoError(t, err)
	assert.Equal(t, int32(3), repo.calls.Load(), "served from cache")
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.Rules, second.Rules)

	_, err = svc.Load(ctx, "keto", ModeMealPlanner, "nl")
	require.NoError(t, err)
	assert.Equal(t, int32(6), repo.calls.Load(), "mode is part of the key")

	require.NoError(t, svc.Invalidate(ctx, "keto", "", "nl"))
	_, err = svc.Load(ctx, "keto", "", "nl")
	require.NoError(t, err)
	assert.Equal(t, int32(9), repo.calls.Load())
}

func TestService_CacheFailuresAreNotFatal(t *testing.T) {
	svc := NewService(sampleRepo(), brokenStore{})
	rs, err := svc.Load(context.Background(), "keto", "", "")
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, rs.Provenance.Source)
}

func TestService_LoadErrors(t *testing.T) {
	svc := NewService(&fakeRepo{rulesErr: common.Wrap(common.ErrRepoUnavailable, errors.New("timeout"))}, nil)

	_, err := svc.Load(context.Background(), "keto", "", "")
	assert.ErrorIs(t, err, common.ErrRepoUnavailable)

	_, err = svc.Load(context.Background(), "", "", "")
	assert.True(t, common.IsValidationError(err))
}

func TestService_Evaluate(t *testing.T) {
	svc := NewService(sampleRepo(), nil)
	ev, err := svc.Evaluate(context.Background(), "keto", "", "", Draft{
		Title:       "Risotto",
		Ingredients: []DraftIngredient{{Name: "Jasmine rice"}},
	})
	require.NoError(t, err)
	assert.False(t, ev.OK)
	require.Len(t, ev.Findings, 1)
	assert.Equal(t, "db:diet_category_constraints:c2:i-rice", ev.Findings[0].RuleID)
	assert.Equal(t, "rice", ev.Findings[0].MatchedTerm)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "guardrails:keto:plan_chat:nl", CacheKey("keto", ModePlanChat, "nl"))
	assert.Equal(t, "guardrails:x%3Arecipe_adaptation:plan_chat:", CacheKey("x:recipe_adaptation", ModePlanChat, ""))
	assert.NotEqual(t,
		CacheKey("x:recipe_adaptation", ModePlanChat, ""),
		CacheKey("x", ModeRecipeAdaptation, "plan_chat:"),
	)
}
