package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBuild(t *testing.T) {
	err := New(fmt.Errorf("boom")).
		Component("engine").
		ForKind(KindInvalidState).
		Context("state", "Running").
		Build()

	require.NotNil(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, "engine", err.Component())
	assert.Equal(t, KindInvalidState, err.Kind)
	assert.Equal(t, "Running", err.GetContext()["state"])
}

func TestErrorDefaultsComponentUnknown(t *testing.T) {
	err := New(nil).Build()
	assert.Equal(t, ComponentUnknown, err.Component())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", New(nil).ForKind(KindDeviceLost).Build())
	assert.Equal(t, KindDeviceLost, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestMarkReported(t *testing.T) {
	err := New(nil).Build()
	assert.False(t, err.IsReported())
	err.MarkReported()
	assert.True(t, err.IsReported())
}
