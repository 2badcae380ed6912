package ringbuffer

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	b := New(100, 2)
	assert.Equal(t, 128, b.CapacityFrames())
}

func TestFillBoundsInvariant(t *testing.T) {
	b := New(8, 1)
	assert.Equal(t, 0, b.AvailableRead())
	assert.Equal(t, 8, b.AvailableWrite())

	slice := b.AcquireWrite(5)
	require.Len(t, slice, 5)
	b.CommitWrite(5)

	assert.Equal(t, 5, b.AvailableRead())
	assert.Equal(t, 3, b.AvailableWrite())
	assert.Equal(t, b.CapacityFrames(), b.AvailableRead()+b.AvailableWrite())
}

func TestAcquireWriteTruncatesAtWraparound(t *testing.T) {
	b := New(8, 1)

	// Write and drain six frames so the write cursor sits two frames
	// before the end of the linear region and a large write must wrap.
	b.CommitWrite(len(b.AcquireWrite(6)))
	b.CommitRead(len(b.AcquireRead(6)))

	slice := b.AcquireWrite(8)
	assert.LessOrEqual(t, len(slice), 2, "acquire must truncate at the end of the linear region, not wrap")
}

func TestRoundTripSingleThreaded(t *testing.T) {
	b := New(16, 2)
	written := make([]float32, 0, 64)
	read := make([]float32, 0, 64)

	for round := 0; round < 20; round++ {
		n := 1 + round%5
		slice := b.AcquireWrite(n)
		got := len(slice) / b.Channels()
		for i := range slice {
			v := float32(len(written) + i)
			slice[i] = v
			written = append(written, v)
		}
		b.CommitWrite(got)

		rs := b.AcquireRead(got)
		read = append(read, rs...)
		b.CommitRead(len(rs) / b.Channels())
	}

	assert.Equal(t, written, read)
}

func TestResetOnlyLegalWhenNotRunningEqualizesIndices(t *testing.T) {
	b := New(8, 1)
	b.CommitWrite(len(b.AcquireWrite(5)))
	b.Reset()
	assert.Equal(t, 0, b.AvailableRead())
	assert.Equal(t, b.CapacityFrames(), b.AvailableWrite())
}

func TestPrefillAdvancesWriteIndexWithZeros(t *testing.T) {
	b := New(16, 2)
	b.Prefill(8)
	assert.Equal(t, 8, b.AvailableRead())

	slice := b.AcquireRead(8)
	for _, v := range slice {
		assert.Equal(t, float32(0), v)
	}
}

// TestConcurrentProducerConsumer drives one producer goroutine and one
// consumer goroutine concurrently and checks the read sequence matches
// what was written, with no loss or reorder — the core SPSC contract.
func TestConcurrentProducerConsumer(t *testing.T) {
	const channels = 1
	const totalFrames = 200_000
	b := New(256, channels)

	var wg sync.WaitGroup
	wg.Add(2)

	written := make([]float32, totalFrames)
	for i := range written {
		written[i] = float32(i)
	}

	go func() {
		defer wg.Done()
		rnd := rand.New(rand.NewSource(1))
		pos := 0
		for pos < totalFrames {
			want := 1 + rnd.Intn(32)
			if want > totalFrames-pos {
				want = totalFrames - pos
			}
			for {
				slice := b.AcquireWrite(want)
				if len(slice) == 0 {
					continue
				}
				copy(slice, written[pos:pos+len(slice)])
				b.CommitWrite(len(slice))
				pos += len(slice)
				break
			}
		}
	}()

	read := make([]float32, 0, totalFrames)
	go func() {
		defer wg.Done()
		rnd := rand.New(rand.NewSource(2))
		for len(read) < totalFrames {
			want := 1 + rnd.Intn(32)
			slice := b.AcquireRead(want)
			if len(slice) == 0 {
				continue
			}
			read = append(read, slice...)
			b.CommitRead(len(slice))
		}
	}()

	wg.Wait()
	require.Len(t, read, totalFrames)
	assert.Equal(t, written, read)
}

func TestAvailableNeverExceedsCapacity(t *testing.T) {
	b := New(8, 1)
	for i := 0; i < 1000; i++ {
		n := len(b.AcquireWrite(3))
		b.CommitWrite(n)
		avail := b.AvailableRead()
		assert.GreaterOrEqual(t, avail, 0)
		assert.LessOrEqual(t, avail, b.CapacityFrames())
		m := len(b.AcquireRead(2))
		b.CommitRead(m)
	}
}
