package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/modules/config"
)

func calibrationAt(t *testing.T, content string) *Calibration {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return NewCalibration(&config.Config{CalibrationFile: path})
}

func TestCalibration(t *testing.T) {
	t.Run("absent file is identity", func(t *testing.T) {
		c := calibrationAt(t, "")
		got, applied := c.Apply(0.42)
		assert.False(t, applied)
		assert.Equal(t, 0.42, got)
	})

	t.Run("malformed file falls back to identity", func(t *testing.T) {
		c := calibrationAt(t, "{not json")
		got, applied := c.Apply(0.42)
		assert.False(t, applied)
		assert.Equal(t, 0.42, got)
	})

	t.Run("wrong model type is ignored", func(t *testing.T) {
		c := calibrationAt(t, `{"type":"isotonic","a":1,"b":2}`)
		_, applied := c.Apply(0.42)
		assert.False(t, applied)
	})

	t.Run("unit logistic is identity transform", func(t *testing.T) {
		c := calibrationAt(t, `{"type":"logistic","a":0,"b":1}`)
		got, applied := c.Apply(0.42)
		assert.True(t, applied)
		assert.InDelta(t, 0.42, got, 1e-9)
	})

	t.Run("positive a shifts probability up", func(t *testing.T) {
		c := calibrationAt(t, `{"type":"logistic","a":0.5,"b":1}`)
		got, applied := c.Apply(0.42)
		assert.True(t, applied)
		assert.Greater(t, got, 0.42)
		assert.LessOrEqual(t, got, 1.0)
	})

	t.Run("boundary probabilities stay finite", func(t *testing.T) {
		c := calibrationAt(t, `{"type":"logistic","a":0,"b":1}`)
		lo, _ := c.Apply(0)
		hi, _ := c.Apply(1)
		assert.GreaterOrEqual(t, lo, 0.0)
		assert.LessOrEqual(t, hi, 1.0)
	})
}
