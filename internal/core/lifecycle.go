package core

import (
	"github.com/dkeye/Arena/internal/domain"
)

// LifecycleManager holds the status of one room and enforces forward-only moves.
// Not safe for concurrent use; the owning Room serializes access.
type LifecycleManager struct {
	status   domain.Status
	onChange func(from, to domain.Status)
}

func NewLifecycleManager(onChange func(from, to domain.Status)) *LifecycleManager {
	if onChange == nil {
		onChange = func(domain.Status, domain.Status) {}
	}
	return &LifecycleManager{status: domain.StatusWaiting, onChange: onChange}
}

func (lm *LifecycleManager) Status() domain.Status { return lm.status }

// Transition moves to the next status and notifies the observer synchronously,
// so the registry index never lags behind the room.
func (lm *LifecycleManager) Transition(to domain.Status) error {
	from := lm.status
	if !domain.CanTransition(from, to) {
		return domain.New(domain.CodeInternal, "illegal status transition").
			WithContext("from", from.String()).
			WithContext("to", to.String())
	}
	lm.status = to
	lm.onChange(from, to)
	return nil
}

// CanStart reports whether count players satisfy cfg and the room never started.
func CanStart(status domain.Status, count int, cfg domain.RoomConfig) bool {
	return status == domain.StatusWaiting && count >= cfg.MinPlayers && count <= cfg.MaxPlayers
}
