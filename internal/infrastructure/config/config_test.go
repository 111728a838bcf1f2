package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Second, cfg.DedupWindow)
	assert.InDelta(t, 1.0, cfg.Scoring.Weights.Rating+cfg.Scoring.Weights.Nutrition+cfg.Scoring.Weights.Variety, 1e-12)
}

func TestDecode_Validation(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]interface{}
		wantErr string
	}{
		{
			name:    "weights must sum to one",
			set:     map[string]interface{}{"scoring.weights.variety": 0.5},
			wantErr: "sum to 1.0",
		},
		{
			name:    "negative weight",
			set:     map[string]interface{}{"scoring.weights.rating": -0.1, "scoring.weights.nutrition": 0.85},
			wantErr: "must not be negative",
		},
		{
			name:    "unknown driver",
			set:     map[string]interface{}{"database.driver": "mongo"},
			wantErr: "unknown database driver",
		},
		{
			name:    "supabase without key",
			set:     map[string]interface{}{"database.driver": DriverSupabase, "supabase.url": "http://localhost"},
			wantErr: "supabase url and api key",
		},
		{
			name:    "unknown cache backend",
			set:     map[string]interface{}{"cache.backend": "memcached"},
			wantErr: "unknown cache backend",
		},
		{
			name: "supabase ok",
			set: map[string]interface{}{
				"database.driver":  DriverSupabase,
				"supabase.url":     "http://localhost",
				"supabase.api_key": "secret-key",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			cfg, err := decode(v)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg)
		})
	}
}

func TestConfig_ValidateAfterOverride(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")

	cfg.Database.Driver = DriverSupabase
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supabase url and api key")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "abcd...wxyz", MaskSecret("abcdefghijklmnopqrstuvwxyz"))
}
