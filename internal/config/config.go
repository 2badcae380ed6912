// Package config defines the engine's session configuration
// (EngineConfig) and loads it from YAML plus environment/flag
// overrides via viper, the way the teacher loads conf.Settings in
// cmd/realtime.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/Arnold-Curtis/AudioGlass/internal/errs"
)

// ShareMode selects between the host audio API's shared and exclusive
// modes.
type ShareMode string

const (
	ShareModeShared    ShareMode = "shared"
	ShareModeExclusive ShareMode = "exclusive"
)

// PerformanceProfile is a hint passed through to the host audio
// service.
type PerformanceProfile string

const (
	ProfileLowLatency   PerformanceProfile = "low-latency"
	ProfileConservative PerformanceProfile = "conservative"
)

// EngineConfig is supplied by the shell at Initialize and is immutable
// for the life of one session.
type EngineConfig struct {
	InputDeviceID  string `mapstructure:"input_device_id" yaml:"input_device_id"`
	OutputDeviceID string `mapstructure:"output_device_id" yaml:"output_device_id"`

	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int `mapstructure:"channels" yaml:"channels"`

	PeriodFrames      int `mapstructure:"period_frames" yaml:"period_frames"`
	RingBufferFrames  int `mapstructure:"ring_buffer_frames" yaml:"ring_buffer_frames"`

	ShareMode          ShareMode          `mapstructure:"share_mode" yaml:"share_mode"`
	PerformanceProfile PerformanceProfile `mapstructure:"performance_profile" yaml:"performance_profile"`
	BypassOSResampler  bool               `mapstructure:"bypass_os_resampler" yaml:"bypass_os_resampler"`

	Volume float64 `mapstructure:"volume" yaml:"volume"`
}

// Defaults returns an EngineConfig with every §3/§6 default applied,
// suitable as the viper unmarshal target's zero value.
func Defaults() EngineConfig {
	return EngineConfig{
		SampleRate:         48000,
		Channels:           2,
		PeriodFrames:       128,
		RingBufferFrames:   2048,
		ShareMode:          ShareModeShared,
		PerformanceProfile: ProfileLowLatency,
		BypassOSResampler:  true,
		Volume:             1.0,
	}
}

// ValidationResult separates configuration validity from the
// configuration data itself, following the teacher's
// runtime.ValidationResult pattern: warnings don't block startup,
// errors do.
type ValidationResult struct {
	Warnings []string
	Errors   []string
	Valid    bool
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

func (r *ValidationResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *ValidationResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// HasIssues reports whether there are any warnings or errors.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}

// Validate applies the defaults from §3/§6 for zero-valued sample
// rate, channels, period, ring size, share mode and performance
// profile (a zero Volume and a false BypassOSResampler are kept as
// given) and checks the invariants the Engine Controller's Initialize
// operation must enforce before opening devices. It never mutates cfg;
// callers apply the normalized copy it returns.
func Validate(cfg EngineConfig) (EngineConfig, *ValidationResult, error) {
	result := newValidationResult()

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
		result.addWarning("sample_rate unset, defaulting to 48000")
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
		result.addWarning("channels unset, defaulting to 2")
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return cfg, result, errs.New(nil).
			Component("config").
			ForKind(errs.KindInvalidArgument).
			Context("channels", cfg.Channels).
			Build()
	}
	if cfg.PeriodFrames == 0 {
		cfg.PeriodFrames = 128
		result.addWarning("period_frames unset, defaulting to 128")
	}
	if cfg.PeriodFrames <= 0 {
		return cfg, result, errs.New(nil).
			Component("config").
			ForKind(errs.KindInvalidArgument).
			Context("period_frames", cfg.PeriodFrames).
			Build()
	}
	if cfg.RingBufferFrames == 0 {
		cfg.RingBufferFrames = 2048
		result.addWarning("ring_buffer_frames unset, defaulting to 2048")
	}
	if cfg.ShareMode == "" {
		cfg.ShareMode = ShareModeShared
	}
	if cfg.ShareMode != ShareModeShared && cfg.ShareMode != ShareModeExclusive {
		return cfg, result, errs.New(nil).
			Component("config").
			ForKind(errs.KindInvalidArgument).
			Context("share_mode", string(cfg.ShareMode)).
			Build()
	}
	if cfg.PerformanceProfile == "" {
		cfg.PerformanceProfile = ProfileLowLatency
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return cfg, result, errs.New(nil).
			Component("config").
			ForKind(errs.KindInvalidArgument).
			Context("volume", cfg.Volume).
			Build()
	}

	return cfg, result, nil
}

// Load reads an EngineConfig from the given YAML file path, overlaying
// defaults for anything unset. An empty path loads defaults only
// (still subject to environment variable overrides bound by the
// caller's cobra flags, following cmd/realtime's BindPFlags pattern).
func Load(path string) (EngineConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIOGLASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("input_device_id", def.InputDeviceID)
	v.SetDefault("output_device_id", def.OutputDeviceID)
	v.SetDefault("sample_rate", def.SampleRate)
	v.SetDefault("channels", def.Channels)
	v.SetDefault("period_frames", def.PeriodFrames)
	v.SetDefault("ring_buffer_frames", def.RingBufferFrames)
	v.SetDefault("share_mode", string(def.ShareMode))
	v.SetDefault("performance_profile", string(def.PerformanceProfile))
	v.SetDefault("bypass_os_resampler", def.BypassOSResampler)
	v.SetDefault("volume", def.Volume)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, errs.New(err).
				Component("config").
				ForKind(errs.KindInvalidArgument).
				Context("path", path).
				Build()
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, errs.New(err).
			Component("config").
			ForKind(errs.KindInvalidArgument).
			Build()
	}

	normalized, _, err := Validate(cfg)
	if err != nil {
		return EngineConfig{}, err
	}
	return normalized, nil
}
