package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitDefaultsLevel(t *testing.T) {
	Init(Options{})
	assert.NotNil(t, ForComponent("engine"))
	assert.NotNil(t, Human())
}

func TestForComponentFallsBackBeforeInit(t *testing.T) {
	structuredLogger = nil
	humanLogger = nil
	logger := ForComponent("engine")
	assert.NotNil(t, logger)
}

func TestReplaceLevelNamesTraceAndFatal(t *testing.T) {
	attr := replaceLevel(nil, slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)})
	assert.Equal(t, "TRACE", attr.Value.String())

	attr = replaceLevel(nil, slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelFatal)})
	assert.Equal(t, "FATAL", attr.Value.String())
}
