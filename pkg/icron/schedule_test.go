package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2026, 3, 1, 10, 3, 0, 0, time.UTC)

	info, err := GetTriggerInfo("*/10 * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC), info.Next)
	assert.Equal(t, 7*time.Minute, info.TimeUntilNext)

	info, err = GetTriggerInfo("@every 10m", ref)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, info.TimeUntilNext)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("@hourly"))
	assert.NoError(t, Validate("0 3 * * *"))
	assert.Error(t, Validate("0 0 3 * * *"))
	assert.Error(t, Validate("soon"))
}
