package idalloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerShardCount(t *testing.T) {
	assert.Len(t, NewManager(2).shards, 1)
	assert.Len(t, NewManager(123).shards, 2)
	assert.Len(t, NewManager(128).shards, 2)
}

// S4: allocate/release sequencing with a tiny capacity.
func TestAllocateAndReleaseSequencing(t *testing.T) {
	m := NewManager(2)
	assert.Equal(t, int32(0), m.Outstanding())

	id1, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id1)
	assert.Equal(t, int32(1), m.Outstanding())

	id2, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), id2)
	assert.Equal(t, int32(2), m.Outstanding())

	_, err = m.Allocate()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(2), m.Outstanding())

	m.Release(id1)
	assert.Equal(t, int32(1), m.Outstanding())

	id3, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id3)
}

func TestIsOccupiedTracksAllocateAndRelease(t *testing.T) {
	m := NewManager(2)
	assert.False(t, m.IsOccupied(1))
	assert.False(t, m.IsOccupied(2))

	id1, err := m.Allocate()
	require.NoError(t, err)
	assert.True(t, m.IsOccupied(id1))
	assert.False(t, m.IsOccupied(2))

	m.Release(id1)
	assert.False(t, m.IsOccupied(id1))
}

func TestIsOccupiedFalseForZeroAndOutOfRange(t *testing.T) {
	m := NewManager(8)
	assert.False(t, m.IsOccupied(0))
	assert.False(t, m.IsOccupied(9))
	assert.False(t, m.IsOccupied(67))
}

func TestReleaseOutOfRangeIsNoOp(t *testing.T) {
	m := NewManager(36)
	m.Release(37)
	assert.Equal(t, int32(0), m.Outstanding())
	m.Release(67)
	assert.Equal(t, int32(0), m.Outstanding())
}

func TestReleaseOfUnallocatedIDIsNoOp(t *testing.T) {
	m := NewManager(8)
	id, err := m.Allocate()
	require.NoError(t, err)
	m.Release(id + 1)
	assert.Equal(t, int32(1), m.Outstanding())
}

func TestReleaseNeverPanicsOnZero(t *testing.T) {
	m := NewManager(4)
	assert.NotPanics(t, func() { m.Release(0) })
}

func TestConcurrentAllocateNeverDuplicates(t *testing.T) {
	const capacity = 200
	m := NewManager(capacity)

	var wg sync.WaitGroup
	ids := make(chan uint16, capacity)
	for i := 0; i < capacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Allocate()
			require.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint16]bool, capacity)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, capacity)

	_, err := m.Allocate()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestBalancedAllocateReleaseZeroesBitmap(t *testing.T) {
	m := NewManager(128)
	ids := make([]uint16, 0, 128)
	for i := 0; i < 128; i++ {
		id, err := m.Allocate()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		m.Release(id)
	}
	assert.Equal(t, int32(0), m.Outstanding())
	for i := range m.shards {
		assert.Equal(t, uint64(0), m.shards[i].bitmap.Load())
	}
}

func TestShardAllocateReturnsNearestFreeBit(t *testing.T) {
	var s shard
	s.bitmap.Store(0x1DF)
	idx, ok := s.allocate()
	require.True(t, ok)
	assert.Equal(t, uint8(5), idx)
}

func TestShardReleaseReportsWhetherBitWasSet(t *testing.T) {
	var s shard
	s.bitmap.Store(0x1DF)
	assert.True(t, s.release(3))
	assert.False(t, s.release(3))
	assert.False(t, s.release(64))
}
