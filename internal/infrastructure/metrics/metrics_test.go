package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestObserveRulesetLoad(t *testing.T) {
	before := testutil.ToFloat64(rulesetLoads.WithLabelValues("fallback"))
	ObserveRulesetLoad("fallback", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(rulesetLoads.WithLabelValues("fallback")))
}

func TestIncRulesetCache(t *testing.T) {
	hits := testutil.ToFloat64(rulesetCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(rulesetCache.WithLabelValues("miss"))
	IncRulesetCache(true)
	IncRulesetCache(false)
	IncRulesetCache(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(rulesetCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(rulesetCache.WithLabelValues("miss")))
}

func TestObserveRescore(t *testing.T) {
	before := testutil.ToFloat64(rescoreRecords.WithLabelValues("failed"))
	ObserveRescore(3, 1, 2, 20*time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(rescoreRecords.WithLabelValues("failed")))
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(queueDepth))
}

func TestObserveHTTPRequest(t *testing.T) {
	ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200")))
}
