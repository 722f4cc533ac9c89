package core

import (
	"sync"
	"time"
)

type TimerID uint64

type timerEntry struct {
	t        *time.Timer
	interval time.Duration
	repeat   bool
	fn       func()
}

// TimerManager owns the scheduled callbacks of one room.
// After CancelAll no callback starts, even one whose timer already expired.
type TimerManager struct {
	mu     sync.Mutex
	next   TimerID
	timers map[TimerID]*timerEntry
	closed bool
}

func NewTimerManager() *TimerManager {
	return &TimerManager{timers: make(map[TimerID]*timerEntry)}
}

// AddTimer schedules fn after interval, every interval when repeat is set.
// Returns 0 once the manager is closed.
func (tm *TimerManager) AddTimer(interval time.Duration, fn func(), repeat bool) TimerID {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.closed {
		return 0
	}
	tm.next++
	id := tm.next
	e := &timerEntry{interval: interval, repeat: repeat, fn: fn}
	e.t = time.AfterFunc(interval, func() { tm.fire(id) })
	tm.timers[id] = e
	return id
}

func (tm *TimerManager) fire(id TimerID) {
	tm.mu.Lock()
	e, ok := tm.timers[id]
	if !ok || tm.closed {
		tm.mu.Unlock()
		return
	}
	if !e.repeat {
		delete(tm.timers, id)
	}
	tm.mu.Unlock()

	e.fn()

	if e.repeat {
		tm.mu.Lock()
		if cur, ok := tm.timers[id]; ok && cur == e && !tm.closed {
			e.t.Reset(e.interval)
		}
		tm.mu.Unlock()
	}
}

// CancelTimer stops one timer; false when it already fired or never existed.
func (tm *TimerManager) CancelTimer(id TimerID) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	e, ok := tm.timers[id]
	if !ok {
		return false
	}
	e.t.Stop()
	delete(tm.timers, id)
	return true
}

// CancelAll stops every timer exactly once and closes the manager.
func (tm *TimerManager) CancelAll() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.closed {
		return 0
	}
	tm.closed = true
	n := len(tm.timers)
	for id, e := range tm.timers {
		e.t.Stop()
		delete(tm.timers, id)
	}
	return n
}

func (tm *TimerManager) Active() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.timers)
}
