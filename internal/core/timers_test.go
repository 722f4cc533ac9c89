package core_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Arena/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerManager_OneShot(t *testing.T) {
	tm := core.NewTimerManager()
	var n atomic.Int32
	tm.AddTimer(10*time.Millisecond, func() { n.Add(1) }, false)

	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, 0, tm.Active())
}

func TestTimerManager_Repeat(t *testing.T) {
	tm := core.NewTimerManager()
	var n atomic.Int32
	id := tm.AddTimer(5*time.Millisecond, func() { n.Add(1) }, true)

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, tm.CancelTimer(id))
	stopped := n.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, n.Load(), stopped+1)
}

func TestTimerManager_CancelAllIsFinal(t *testing.T) {
	tm := core.NewTimerManager()
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		tm.AddTimer(20*time.Millisecond, func() { n.Add(1) }, i%2 == 0)
	}

	assert.Equal(t, 5, tm.CancelAll())
	assert.Equal(t, 0, tm.CancelAll())
	assert.Zero(t, tm.AddTimer(time.Millisecond, func() { n.Add(1) }, false))

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, n.Load())
}

func TestTimerManager_CancelUnknown(t *testing.T) {
	tm := core.NewTimerManager()
	assert.False(t, tm.CancelTimer(42))
}
