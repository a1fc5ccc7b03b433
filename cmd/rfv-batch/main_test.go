package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfv-segments/internal/common"
)

func TestValidateConfig(t *testing.T) {
	t.Setenv("RFV_CONFIG", "")
	t.Setenv("RFV_TOP_SCORE", "")
	cfg, err := common.LoadConfig()
	require.NoError(t, err)
	require.NoError(t, validateConfig(cfg, 4, 64))

	err = validateConfig(cfg, 0, 64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Contains(t, err.Error(), "RFV_WORKERS")

	cfg.RFV.TopScore = "AAE"
	err = validateConfig(cfg, 4, 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFV_TOP_SCORE")
}
