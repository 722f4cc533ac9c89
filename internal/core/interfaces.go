package core

import (
	"context"
	"time"

	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultEmptyGrace = 5 * time.Second
	DefaultErrorGrace = time.Second
)

// Directory is the registry as seen by a room.
// Rooms call it while holding their own lock; implementations must never
// call back into a room from inside these methods.
type Directory interface {
	UpdateIndex(r *Room, from, to domain.Status)
	BindPlayer(pid domain.PlayerID, rid domain.RoomID)
	UnbindPlayer(pid domain.PlayerID, rid domain.RoomID)
	// Release drops r only if r is the room registered under its id.
	Release(r *Room)
}

// Publisher receives side-effect notifications; it must not block.
type Publisher interface {
	Publish(topic string, payload any)
}

// Store is an optional key/value persistence adapter usable from hooks.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Deps is threaded into every room instead of process-wide singletons.
type Deps struct {
	Logger     zerolog.Logger
	Directory  Directory
	Bus        Publisher
	Store      Store
	Now        func() time.Time
	EmptyGrace time.Duration
	ErrorGrace time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Directory == nil {
		d.Directory = nopDirectory{}
	}
	if d.Bus == nil {
		d.Bus = nopPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.EmptyGrace <= 0 {
		d.EmptyGrace = DefaultEmptyGrace
	}
	if d.ErrorGrace <= 0 {
		d.ErrorGrace = DefaultErrorGrace
	}
	return d
}

type nopDirectory struct{}

func (nopDirectory) UpdateIndex(*Room, domain.Status, domain.Status) {}
func (nopDirectory) BindPlayer(domain.PlayerID, domain.RoomID) {}
func (nopDirectory) UnbindPlayer(domain.PlayerID, domain.RoomID) {}
func (nopDirectory) Release(*Room) {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
