package core

import (
	"cmp"
	"slices"

	"github.com/dkeye/Arena/internal/domain"
)

// PlayerManager is the roster of one room. Not safe for concurrent use;
// the owning Room serializes access.
type PlayerManager struct {
	max     int
	byID    map[domain.PlayerID]*Player
	joinSeq map[domain.PlayerID]uint64
	seq     uint64
}

func NewPlayerManager(capacity int) *PlayerManager {
	return &PlayerManager{
		max:     capacity,
		byID:    make(map[domain.PlayerID]*Player),
		joinSeq: make(map[domain.PlayerID]uint64),
	}
}

func (pm *PlayerManager) Count() int { return len(pm.byID) }
func (pm *PlayerManager) Full() bool { return len(pm.byID) >= pm.max }

func (pm *PlayerManager) Has(id domain.PlayerID) bool {
	_, ok := pm.byID[id]
	return ok
}

func (pm *PlayerManager) Get(id domain.PlayerID) (*Player, bool) {
	p, ok := pm.byID[id]
	return p, ok
}

// Add inserts p. The caller has already checked capacity and duplicates.
func (pm *PlayerManager) Add(p *Player) {
	pm.seq++
	pm.byID[p.ID()] = p
	pm.joinSeq[p.ID()] = pm.seq
}

func (pm *PlayerManager) Remove(id domain.PlayerID) (*Player, bool) {
	p, ok := pm.byID[id]
	if !ok {
		return nil, false
	}
	delete(pm.byID, id)
	delete(pm.joinSeq, id)
	return p, true
}

// Snapshot returns the roster in join order.
func (pm *PlayerManager) Snapshot() []*Player {
	out := make([]*Player, 0, len(pm.byID))
	for _, p := range pm.byID {
		out = append(out, p)
	}
	sortBySeq(out, pm.joinSeq)
	return out
}

// Clear empties the roster and returns the evicted players.
func (pm *PlayerManager) Clear() []*Player {
	out := pm.Snapshot()
	pm.byID = make(map[domain.PlayerID]*Player)
	pm.joinSeq = make(map[domain.PlayerID]uint64)
	return out
}

func sortBySeq(ps []*Player, seq map[domain.PlayerID]uint64) {
	slices.SortFunc(ps, func(a, b *Player) int {
		return cmp.Compare(seq[a.ID()], seq[b.ID()])
	})
}
