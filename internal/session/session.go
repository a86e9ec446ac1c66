// apps/go-server/internal/session/session.go
//
// A Session is one running game: an engine plus the clock that drives it.
// Responsibilities:
//   - Own the single ticker for the game and run Tick at a fixed interval.
//   - Publish a snapshot after every tick (update, then draw).
//   - Apply direction and reset commands between ticks.
//   - Cancel and reschedule the ticker whenever the engine resets, so a game
//     never has two schedules.
//   - End itself once it expires or sits idle with nobody watching, and tell
//     the owner through OnExpire.
//
// Concurrency:
//   - Run is the only goroutine that touches the engine.
//   - Commands arrive through an inbox channel, so a tick never sees a
//     half-applied direction change.
//   - State is a lock-free read of the last published snapshot.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

// DefaultInterval is the classic 200ms tick.
const DefaultInterval = 200 * time.Millisecond

// ErrStopped is returned by calls made after Stop.
var ErrStopped = errors.New("session stopped")

// Options configures a Session.
type Options struct {
	Interval time.Duration   // tick period; DefaultInterval when zero
	Logger   *zerolog.Logger // defaults to the global logger

	// ExpiresAt ends the session at that time. Zero means never.
	ExpiresAt time.Time
	// IdleTimeout ends the session after this long without input while no
	// one is subscribed. Zero disables it.
	IdleTimeout time.Duration
	// Now is the clock used for expiry checks; time.Now when nil.
	Now func() time.Time
	// OnExpire is called from Run when the session ends on its own.
	OnExpire func(id string)
}

type setDirection struct {
	dir   game.Direction
	reply chan bool
}

type reset struct {
	reply chan game.State
}

// Session drives one Engine.
type Session struct {
	ID       string
	Created  time.Time
	interval time.Duration
	log      zerolog.Logger

	expiresAt   time.Time
	idleTimeout time.Duration
	now         func() time.Time
	onExpire    func(id string)
	lastActive  atomic.Int64 // unix nanos of the last input or unsubscribe

	eng    *game.Engine
	inbox  chan any
	latest atomic.Pointer[game.State]

	subMu   sync.Mutex
	subs    map[int]chan game.State
	nextSub int
	closed  bool

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New wraps eng. The engine must not be used directly afterwards.
func New(id string, eng *game.Engine, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lg := log.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	s := &Session{
		ID:          id,
		Created:     opts.Now().UTC(),
		interval:    opts.Interval,
		log:         lg.With().Str("session", id).Logger(),
		expiresAt:   opts.ExpiresAt,
		idleTimeout: opts.IdleTimeout,
		now:         opts.Now,
		onExpire:    opts.OnExpire,
		eng:         eng,
		inbox:       make(chan any, 16),
		subs:        make(map[int]chan game.State),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.touch()
	st := eng.State()
	s.latest.Store(&st)
	return s
}

// Interval returns the tick period.
func (s *Session) Interval() time.Duration { return s.interval }

// Run owns the engine until Stop is called. Call it in its own goroutine.
func (s *Session) Run() {
	defer close(s.done)
	defer s.closeSubscribers()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Debug().Dur("interval", s.interval).Msg("session started")

	for {
		select {
		case <-s.quit:
			s.log.Debug().Msg("session stopped")
			return
		case cmd := <-s.inbox:
			if s.handle(cmd) {
				ticker.Reset(s.interval)
			}
		case <-ticker.C:
			if s.step() == game.EventCollided {
				ticker.Reset(s.interval)
			}
			if s.expired(s.now()) {
				s.log.Info().Msg("session expired")
				if s.onExpire != nil {
					s.onExpire(s.ID)
				}
				return
			}
		}
	}
}

// step runs one tick and publishes the result, idle or not, so renderers
// redraw on every interval.
func (s *Session) step() game.Event {
	before := s.eng.State()
	ev := s.eng.Tick()
	switch ev {
	case game.EventCollided:
		s.log.Info().
			Int("score", before.Score).
			Int("length", len(before.Snake)).
			Uint64("ticks", before.Tick).
			Msg("collision, game reset")
	case game.EventAte:
		s.log.Debug().Int("score", before.Score+1).Msg("food eaten")
	}
	s.publish()
	return ev
}

// expired reports whether the session is past its deadline, or idle for
// longer than the idle timeout with no subscribers.
func (s *Session) expired(now time.Time) bool {
	if !s.expiresAt.IsZero() && !now.Before(s.expiresAt) {
		return true
	}
	if s.idleTimeout <= 0 || s.Subscribers() > 0 {
		return false
	}
	return now.Sub(time.Unix(0, s.lastActive.Load())) >= s.idleTimeout
}

func (s *Session) touch() { s.lastActive.Store(s.now().UnixNano()) }

// handle applies a command. It reports whether the schedule must restart.
func (s *Session) handle(cmd any) bool {
	s.touch()
	switch c := cmd.(type) {
	case setDirection:
		ok := s.eng.SetDirection(c.dir)
		if ok {
			s.snapshot()
		}
		c.reply <- ok
	case reset:
		s.eng.Reset()
		s.publish()
		c.reply <- s.State()
		s.log.Debug().Msg("reset requested")
		return true
	}
	return false
}

// snapshot refreshes the value returned by State without drawing.
func (s *Session) snapshot() game.State {
	st := s.eng.State()
	s.latest.Store(&st)
	return st
}

// publish refreshes the snapshot and offers it to every subscriber.
// Subscribers that are not keeping up miss the frame.
func (s *Session) publish() {
	st := s.snapshot()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// State returns the last published snapshot.
func (s *Session) State() game.State { return *s.latest.Load() }

// SetDirection forwards a direction request to the game loop and reports
// whether the engine accepted it.
func (s *Session) SetDirection(ctx context.Context, d game.Direction) (bool, error) {
	reply := make(chan bool, 1)
	if err := s.send(ctx, setDirection{dir: d, reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-s.done:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Reset restarts the game and its tick schedule.
func (s *Session) Reset(ctx context.Context) (game.State, error) {
	reply := make(chan game.State, 1)
	if err := s.send(ctx, reset{reply: reply}); err != nil {
		return game.State{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return game.State{}, ErrStopped
	case <-ctx.Done():
		return game.State{}, ctx.Err()
	}
}

func (s *Session) send(ctx context.Context, cmd any) error {
	select {
	case <-s.quit:
		return ErrStopped
	default:
	}
	select {
	case s.inbox <- cmd:
		return nil
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving a snapshot after every published
// change, and a func that unsubscribes. The channel is closed on unsubscribe
// or when the session stops.
func (s *Session) Subscribe(buffer int) (<-chan game.State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan game.State, buffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
			s.touch()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Session) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Stop ends Run. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }
