package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_KeyAndFormat(t *testing.T) {
	period := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	cfg := DefaultConfig("MO")
	assert.Equal(t, "MO_2026", cfg.Key(period))
	assert.Equal(t, "MO-2026-00042", cfg.Format(period, 42))

	cfg.ResetPeriod = "month"
	cfg.IncludeYear = false
	cfg.PadWidth = 3
	assert.Equal(t, "MO_2026_02", cfg.Key(period))
	assert.Equal(t, "MO-007", cfg.Format(period, 7))

	cfg.ResetPeriod = "never"
	assert.Equal(t, "MO", cfg.Key(period))
}
