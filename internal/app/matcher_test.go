package app_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Arena/internal/app"
	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_ConcurrentQuickMatchSharesRoom(t *testing.T) {
	m := newManager(t, 0)
	matcher := app.NewMatcher(m, zerolog.Nop())

	a, _ := newPlayer("a")
	b, _ := newPlayer("b")

	var wg sync.WaitGroup
	rooms := make([]*core.Room, 2)
	errs := make([]error, 2)
	for i, p := range []*core.Player{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms[i], errs[i] = matcher.QuickMatch(p, "duel", nil)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, rooms[0].ID(), rooms[1].ID())
	assert.Equal(t, 1, m.Registry().Count())
	assert.Equal(t, 2, rooms[0].PlayerCount())
}

func TestMatcher_FillsThenCreates(t *testing.T) {
	m := newManager(t, 0)
	matcher := app.NewMatcher(m, zerolog.Nop())

	seen := map[domain.RoomID]int{}
	for i := range 5 {
		p, _ := newPlayer(fmt.Sprintf("p%d", i))
		r, err := matcher.QuickMatch(p, "duel", nil)
		require.NoError(t, err)
		seen[r.ID()]++
	}
	assert.Len(t, seen, 3)
	for _, r := range m.Registry().All() {
		assert.LessOrEqual(t, r.PlayerCount(), 2)
	}
}

func TestMatcher_FindAvailableRoomSkipsFullAndRunning(t *testing.T) {
	m := newManager(t, 0)
	matcher := app.NewMatcher(m, zerolog.Nop())
	assert.Nil(t, matcher.FindAvailableRoom("duel"))

	full, err := m.CreateRoom("duel", nil)
	require.NoError(t, err)
	a, _ := newPlayer("a")
	b, _ := newPlayer("b")
	require.NoError(t, full.AddPlayer(a))
	require.NoError(t, full.AddPlayer(b))
	assert.Nil(t, matcher.FindAvailableRoom("duel"))

	require.NoError(t, full.Start())
	open, err := m.CreateRoom("duel", nil)
	require.NoError(t, err)
	assert.Same(t, open, matcher.FindAvailableRoom("duel"))
	assert.Nil(t, matcher.FindAvailableRoom("lobby"))
}

func TestMatcher_QuickMatchErrors(t *testing.T) {
	m := newManager(t, 0)
	matcher := app.NewMatcher(m, zerolog.Nop())
	p, _ := newPlayer("p")

	_, err := matcher.QuickMatch(p, "chess", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownClass)

	r, err := matcher.QuickMatch(p, "lobby", nil)
	require.NoError(t, err)
	_, err = matcher.QuickMatch(p, "lobby", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)
	assert.Same(t, r, p.Room())
}
