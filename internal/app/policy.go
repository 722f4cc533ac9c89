package app

import "github.com/dkeye/Arena/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what to do with a player whose direct reply could not be queued.
// Room broadcasts always prune; this covers replies outside a room.
type Policy interface {
	OnBackPressure(p *core.Player) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Player) BackpressureAction {
	return KickMember
}
