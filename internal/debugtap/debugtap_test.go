package debugtap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWritesFramesAndStopClosesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.wav")

	r := New(48000, 2)
	require.NoError(t, r.Start(path))

	for i := 0; i < 10; i++ {
		r.Push([]float32{0.1, -0.1})
	}

	require.NoError(t, r.Stop())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPushDropsFramesWhenQueueIsFull(t *testing.T) {
	r := New(48000, 1)

	for i := 0; i < queueCapacity+10; i++ {
		r.Push([]float32{0})
	}

	assert.Greater(t, r.Dropped(), uint64(0))
}

func TestPushNeverBlocksCaller(t *testing.T) {
	r := New(48000, 1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < queueCapacity*2; i++ {
			r.Push([]float32{0})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked the caller")
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	r := New(48000, 1)
	assert.NoError(t, r.Stop())
}
