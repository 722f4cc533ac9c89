package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Arena/internal/codec"
	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// ErrAbandoned ends a run loop whose players all left.
var ErrAbandoned = errors.New("room abandoned")

// Room is one isolated game session: roster, status machine, timers and a
// single run goroutine driving its behavior.
//
// Lock order is Room.mu, then whatever Directory takes. Hooks and sends
// always run with Room.mu released, so a behavior may call back into the room.
type Room struct {
	id        domain.RoomID
	class     domain.RoomClass
	cfg       domain.RoomConfig
	createdAt time.Time
	behavior  RoomBehavior
	deps      Deps
	log       zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	abandoned chan struct{}

	timers *TimerManager

	mu         sync.Mutex
	players    *PlayerManager
	lifecycle  *LifecycleManager
	data       map[string]any
	destroyed  bool
	emptyTimer TimerID
	errorTimer *time.Timer
	deserted   bool
}

// NewRoom validates cfg and builds a room in Waiting status.
// An empty room starts its grace countdown right away.
func NewRoom(class domain.RoomClass, id domain.RoomID, cfg domain.RoomConfig, behavior RoomBehavior, deps Deps) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if behavior == nil {
		return nil, domain.New(domain.CodeInvalidConfig, "room behavior is nil").WithContext("class", string(class))
	}
	if id == "" {
		id = domain.NewRoomID()
	}
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	r := &Room{
		id:        id,
		class:     class,
		cfg:       cfg,
		createdAt: deps.Now(),
		behavior:  behavior,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		abandoned: make(chan struct{}),
		timers:    NewTimerManager(),
		players:   NewPlayerManager(cfg.MaxPlayers),
		data:      make(map[string]any),
	}
	r.log = deps.Logger.With().
		Str("module", "core.room").
		Str("room_id", string(id)).
		Str("class", string(class)).
		Logger()
	r.lifecycle = NewLifecycleManager(func(from, to domain.Status) {
		r.deps.Directory.UpdateIndex(r, from, to)
	})

	r.mu.Lock()
	r.armEmptyGraceLocked()
	r.mu.Unlock()
	return r, nil
}

func (r *Room) ID() domain.RoomID { return r.id }
func (r *Room) Class() domain.RoomClass { return r.class }
func (r *Room) Config() domain.RoomConfig { return r.cfg }
func (r *Room) CreatedAt() time.Time { return r.createdAt }
func (r *Room) Logger() *zerolog.Logger { return &r.log }
func (r *Room) Store() Store { return r.deps.Store }
func (r *Room) Done() <-chan struct{} { return r.done }
func (r *Room) Context() context.Context { return r.ctx }

// Abandoned is closed once the roster empties while the room is Running.
// Running rooms take no joins, so it never reopens.
func (r *Room) Abandoned() <-chan struct{} { return r.abandoned }

func (r *Room) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lifecycle.Status()
}

func (r *Room) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canStartLocked()
}

func (r *Room) canStartLocked() bool {
	return !r.destroyed && CanStart(r.lifecycle.Status(), r.players.Count(), r.cfg)
}

func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *Room) infoLocked() domain.RoomInfo {
	return domain.RoomInfo{
		ID:         r.id,
		Class:      r.class,
		Status:     r.lifecycle.Status(),
		Players:    r.players.Count(),
		MaxPlayers: r.cfg.MaxPlayers,
		MinPlayers: r.cfg.MinPlayers,
		CreatedAt:  r.createdAt,
	}
}

// Get, Set and Delete expose the room's custom data bag.
func (r *Room) Get(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	return v, ok
}

func (r *Room) Set(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.data[key] = v
}

func (r *Room) Delete(key string) {
	r.mu.Lock()
	delete(r.data, key)
	r.mu.Unlock()
}

// setStatusLocked moves the state machine; the directory index is updated
// inside the same critical section.
func (r *Room) setStatusLocked(to domain.Status) (domain.Status, bool) {
	from := r.lifecycle.Status()
	if err := r.lifecycle.Transition(to); err != nil {
		r.log.Error().Err(err).Msg("status transition rejected")
		return from, false
	}
	return from, true
}

type statusPayload struct {
	From domain.Status `json:"from"`
	To   domain.Status `json:"to"`
}

// Start moves Waiting to Running and launches OnCreate, OnStart and Run on
// the room goroutine. Failures of those hooks never reach the caller.
func (r *Room) Start() error {
	r.mu.Lock()
	if r.destroyed || r.lifecycle.Status() == domain.StatusFinished {
		r.mu.Unlock()
		return domain.ErrRoomNotFound.WithContext("room_id", string(r.id))
	}
	if r.lifecycle.Status() == domain.StatusRunning {
		r.mu.Unlock()
		return domain.ErrAlreadyStarted.WithContext("room_id", string(r.id))
	}
	if !r.canStartLocked() {
		count := r.players.Count()
		r.mu.Unlock()
		return domain.NotReady(count, r.cfg.MinPlayers)
	}
	if r.emptyTimer != 0 {
		r.timers.CancelTimer(r.emptyTimer)
		r.emptyTimer = 0
	}
	from, _ := r.setStatusLocked(domain.StatusRunning)
	info := r.infoLocked()
	r.mu.Unlock()

	r.log.Info().Int("players", info.Players).Msg("room started")
	r.Broadcast(domain.EventStatusChanged, statusPayload{From: from, To: domain.StatusRunning})
	r.publishRoom(domain.TopicRoomStarted, info, nil)

	go r.run()
	return nil
}

func (r *Room) run() {
	err := r.invoke("on_create", func() error { return r.behavior.OnCreate(r.ctx, r) })
	if err == nil {
		err = r.invoke("on_start", func() error { return r.behavior.OnStart(r.ctx, r) })
	}
	if err == nil {
		err = r.invoke("run", func() error { return r.behavior.Run(r.ctx, r) })
	}
	if errors.Is(err, ErrAbandoned) {
		err = nil
	}
	if err != nil && r.ctx.Err() == nil {
		r.fail(err)
		return
	}
	if r.failed() {
		r.log.Debug().Msg("run loop finished after failure, waiting for error grace")
		return
	}
	r.log.Debug().Msg("run loop finished")
	r.Destroy()
}

// failed reports whether fail already scheduled the teardown.
func (r *Room) failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorTimer != nil
}

// live reports whether callbacks may still act on the room.
func (r *Room) live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.destroyed && r.lifecycle.Status() != domain.StatusFinished
}

// invoke calls a behavior hook and turns a panic into an error.
func (r *Room) invoke(stage string, fn func() error) error {
	var err error
	if rec := panics.Try(func() { err = fn() }); rec != nil {
		err = rec.AsError()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// guard runs a hook without a return value; a panic fails the room.
func (r *Room) guard(stage string, fn func()) {
	if err := r.invoke(stage, func() error { fn(); return nil }); err != nil {
		r.fail(err)
	}
}

type roomErrorPayload struct {
	Code    domain.Code `json:"code"`
	Message string      `json:"message"`
}

// fail contains a runtime error: notify the roster, force Finished and
// destroy after the error grace so the notice can reach clients.
func (r *Room) fail(cause error) {
	r.mu.Lock()
	if r.destroyed || r.lifecycle.Status() == domain.StatusFinished {
		r.mu.Unlock()
		r.log.Error().Err(cause).Msg("error after room finished")
		return
	}
	r.mu.Unlock()

	r.log.Error().Err(cause).Msg("room failed")
	r.Broadcast(domain.EventRoomError, roomErrorPayload{Code: domain.CodeInternal, Message: "room terminated by an internal error"})

	r.mu.Lock()
	if r.destroyed || r.lifecycle.Status() == domain.StatusFinished {
		r.mu.Unlock()
		return
	}
	from, _ := r.setStatusLocked(domain.StatusFinished)
	info := r.infoLocked()
	r.errorTimer = time.AfterFunc(r.deps.ErrorGrace, r.Destroy)
	r.timers.CancelAll()
	r.mu.Unlock()

	r.cancel()
	r.Broadcast(domain.EventStatusChanged, statusPayload{From: from, To: domain.StatusFinished})
	r.publishRoom(domain.TopicRoomError, info, cause)
	r.publishRoom(domain.TopicRoomFinished, info, nil)
}

// Destroy tears the room down once; later calls return immediately.
// Players are detached without individual leave events and receive a single
// room:destroyed notice.
func (r *Room) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	if r.errorTimer != nil {
		r.errorTimer.Stop()
	}
	r.mu.Unlock()

	if err := r.invoke("on_destroy", func() error { return r.behavior.OnDestroy(r) }); err != nil {
		r.log.Error().Err(err).Msg("on_destroy failed")
	}
	canceled := r.timers.CancelAll()
	r.cancel()

	r.mu.Lock()
	evicted := r.players.Clear()
	clear(r.data)
	from := r.lifecycle.Status()
	finished := false
	if from != domain.StatusFinished {
		_, finished = r.setStatusLocked(domain.StatusFinished)
	}
	r.emptyTimer = 0
	info := r.infoLocked()
	r.mu.Unlock()

	if len(evicted) > 0 {
		frame, err := codec.Encode(domain.EventRoomDestroyed, map[string]any{"room_id": r.id}, r.deps.Now())
		if err != nil {
			r.log.Error().Err(err).Msg("encode destroyed notice")
		}
		for _, p := range evicted {
			if frame != nil {
				p.Send(frame)
			}
			p.release(r)
		}
	}
	r.deps.Directory.Release(r)

	if finished {
		r.publishRoom(domain.TopicRoomFinished, info, nil)
	}
	r.publishRoom(domain.TopicRoomDestroyed, info, nil)
	r.log.Info().
		Int("evicted", len(evicted)).
		Int("timers_canceled", canceled).
		Msg("room destroyed")
	close(r.done)
}

// AddTimer schedules fn on the room. Panics inside fn fail the room.
// Returns 0 when the room is finished; fn never runs once it is.
func (r *Room) AddTimer(interval time.Duration, fn func(), repeat bool) TimerID {
	return r.timers.AddTimer(interval, func() {
		if !r.live() {
			return
		}
		r.guard("timer", fn)
	}, repeat)
}

func (r *Room) CancelTimer(id TimerID) bool { return r.timers.CancelTimer(id) }

// Sleep suspends the calling hook for d, until the room is torn down, or
// until it is abandoned. Run may return ErrAbandoned as is.
func (r *Room) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.abandoned:
		return ErrAbandoned
	case <-t.C:
		return nil
	}
}

// armEmptyGraceLocked schedules the re-check that destroys an idle empty room.
func (r *Room) armEmptyGraceLocked() {
	if r.emptyTimer != 0 {
		r.timers.CancelTimer(r.emptyTimer)
	}
	r.emptyTimer = r.timers.AddTimer(r.deps.EmptyGrace, r.emptyCheck, false)
}

func (r *Room) emptyCheck() {
	r.mu.Lock()
	r.emptyTimer = 0
	idle := !r.destroyed && r.players.Count() == 0 && r.lifecycle.Status() != domain.StatusRunning
	r.mu.Unlock()
	if !idle {
		return
	}
	r.log.Info().Dur("grace", r.deps.EmptyGrace).Msg("empty room expired")
	r.Destroy()
}

func (r *Room) publishRoom(topic string, info domain.RoomInfo, cause error) {
	ev := domain.RoomEvent{RoomID: info.ID, Class: info.Class, Status: info.Status, Players: info.Players}
	if cause != nil {
		ev.Error = cause.Error()
	}
	r.deps.Bus.Publish(topic, ev)
}

// IsClientError reports whether err should be answered to the sender only.
func IsClientError(err error) bool {
	var e *domain.Error
	return errors.As(err, &e) && e.Code != domain.CodeInternal
}
