package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpec(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 48000, d.SampleRate)
	assert.Equal(t, 2, d.Channels)
	assert.Equal(t, 128, d.PeriodFrames)
	assert.Equal(t, 2048, d.RingBufferFrames)
	assert.Equal(t, ShareModeShared, d.ShareMode)
	assert.True(t, d.BypassOSResampler)
	assert.Equal(t, 1.0, d.Volume)
}

func TestValidateFillsZeroValueDefaults(t *testing.T) {
	cfg, result, err := Validate(EngineConfig{})
	require.NoError(t, err)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.NotEmpty(t, result.Warnings)
	assert.True(t, result.Valid)
}

func TestValidateRejectsUnsupportedChannelCount(t *testing.T) {
	cfg := Defaults()
	cfg.Channels = 6
	_, _, err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsVolumeOutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.Volume = 1.5
	_, _, err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownShareMode(t *testing.T) {
	cfg := Defaults()
	cfg.ShareMode = "turbo"
	_, _, err := Validate(cfg)
	assert.Error(t, err)
}

func TestLoadWithoutFileAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().SampleRate, cfg.SampleRate)
}
