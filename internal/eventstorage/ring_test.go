package eventstorage_test

import (
	"testing"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/eventstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingRejectsZeroCapacity(t *testing.T) {
	_, err := eventstorage.NewRing(0)
	assert.True(t, errors.IsCode(err, eventstorage.ErrInvalidCapacity))
}

func TestRingFIFO(t *testing.T) {
	r, err := eventstorage.NewRing(10)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Capacity())

	require.NoError(t, r.Write([]byte("abc")))
	require.NoError(t, r.Write([]byte("defg")))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 7, r.Used())

	head, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), head)
	assert.Equal(t, 2, r.Len(), "peek does not consume")

	ev, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), ev)
	ev, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("defg"), ev)

	_, ok = r.Pop()
	assert.False(t, ok)
	_, ok = r.Peek()
	assert.False(t, ok)
	assert.Zero(t, r.Used())
}

func TestRingRejectsWhenFull(t *testing.T) {
	r, err := eventstorage.NewRing(8)
	require.NoError(t, err)

	require.NoError(t, r.Write([]byte("12345")))
	err = r.Write([]byte("6789"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, eventstorage.ErrStorageFull))
	assert.Equal(t, uint64(1), r.Dropped())
	assert.Equal(t, 1, r.Len())

	_, _ = r.Pop()
	require.NoError(t, r.Write([]byte("6789")))
	require.NoError(t, r.Write([]byte("abcd")))
	assert.Equal(t, 8, r.Used())
}

func TestRingRejectsEmptyEvent(t *testing.T) {
	r, err := eventstorage.NewRing(8)
	require.NoError(t, err)

	assert.True(t, errors.IsCode(r.Write(nil), eventstorage.ErrEmptyEvent))
}
