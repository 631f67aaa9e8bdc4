package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, clv.DefaultConfig(), cfg.CLVConfig())
	assert.Equal(t, cluster.DefaultConfig(), cfg.ClusterConfig())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.False(t, cfg.Pipeline.Strict)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CLUSTER_K_MAX", "5")
	t.Setenv("CLUSTER_LINKAGE", "average")
	t.Setenv("CLV_DISCOUNT_RATE", "0.01")
	t.Setenv("PIPELINE_STRICT", "true")
	t.Setenv("DB_NAME", "retail")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ClusterConfig().KRange.Max)
	assert.Equal(t, cluster.LinkageAverage, cfg.ClusterConfig().Linkage)
	assert.Equal(t, 0.01, cfg.CLVConfig().DiscountRate)
	assert.True(t, cfg.Pipeline.Strict)
	assert.Contains(t, cfg.ConnectionString(), "/retail?")
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("CLUSTER_SEED", "not-a-number")

	_, err := config.Load()
	assert.Error(t, err)
}
