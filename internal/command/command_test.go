package command

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledstrip/internal/effect"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	require.True(t, q.Enqueue(NewChangeEffect(effect.Solid)))
	require.True(t, q.Enqueue(NewConfigureParams(effect.DefaultParams())))
	require.True(t, q.Enqueue(NewChangeEffect(effect.Gradient)))

	assert.True(t, q.Pending())
	assert.Equal(t, 3, q.Len())

	c, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, NewChangeEffect(effect.Solid), c)

	c, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, ConfigureParams, c.Kind)

	c, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, effect.Gradient, c.Effect)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.False(t, q.Pending())
}

func TestQueueDropsNewestWhenFull(t *testing.T) {
	var buf bytes.Buffer
	q := NewQueue(2)
	q.SetLogger(zerolog.New(&buf))

	assert.True(t, q.Enqueue(NewChangeEffect(effect.Solid)))
	assert.True(t, q.Enqueue(NewChangeEffect(effect.Rainbow)))
	assert.False(t, q.Enqueue(NewChangeEffect(effect.Gradient)))
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Contains(t, buf.String(), "command queue full")

	// the queue keeps the oldest commands in order
	c, _ := q.TryDequeue()
	assert.Equal(t, effect.Solid, c.Effect)
	c, _ = q.TryDequeue()
	assert.Equal(t, effect.Rainbow, c.Effect)
}

func TestQueuePendingDoesNotConsume(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(NewChangeEffect(effect.Polyrhythm))
	for i := 0; i < 3; i++ {
		assert.True(t, q.Pending())
	}
	assert.Equal(t, 1, q.Len())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewQueue(0).Cap())
	assert.Equal(t, 5, NewQueue(5).Cap())
}

func TestQueueNeverReorders(t *testing.T) {
	q := NewQueue(8)
	q.SetLogger(zerolog.Nop())

	const total = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			p := effect.DefaultParams()
			p.Speed = float64(i)
			q.Enqueue(NewConfigureParams(p))
		}
	}()

	last := -1.0
	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		c, ok := q.TryDequeue()
		if ok {
			assert.Greater(t, c.Params.Speed, last)
			last = c.Params.Speed
			received++
			continue
		}
		select {
		case <-done:
			if q.Len() == 0 {
				assert.Equal(t, uint64(total), uint64(received)+q.Dropped())
				return
			}
		default:
		}
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "ChangeEffect(solid)", NewChangeEffect(effect.Solid).String())
	assert.Contains(t, NewConfigureParams(effect.DefaultParams()).String(), "ConfigureParams(")
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
