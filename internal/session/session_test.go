package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

func newTestSession(t *testing.T, interval time.Duration) *Session {
	t.Helper()
	return newSessionOn(t, game.DefaultBoard(), Options{Interval: interval})
}

func newSessionOn(t *testing.T, board game.Board, opts Options) *Session {
	t.Helper()
	eng, err := game.NewSeeded(board, 1)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	lg := zerolog.Nop()
	opts.Logger = &lg
	return New("test", eng, opts)
}

// fakeClock is a wall clock that tests can push forward.
type fakeClock struct{ skew atomic.Int64 }

func (c *fakeClock) Now() time.Time { return time.Now().Add(time.Duration(c.skew.Load())) }

func (c *fakeClock) Advance(d time.Duration) { c.skew.Add(int64(d)) }

func nextFrame(t *testing.T, ch <-chan game.State) game.State {
	t.Helper()
	select {
	case st, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return st
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a frame")
	}
	return game.State{}
}

// countFrames drains ch for d and returns how many frames arrived.
func countFrames(ch <-chan game.State, d time.Duration) int {
	n := 0
	deadline := time.After(d)
	for {
		select {
		case <-ch:
			n++
		case <-deadline:
			return n
		}
	}
}

func TestStepPublishesAfterTick(t *testing.T) {
	s := newTestSession(t, time.Hour)
	ch, cancel := s.Subscribe(4)
	defer cancel()

	reply := make(chan bool, 1)
	s.handle(setDirection{dir: game.Right, reply: reply})
	if !<-reply {
		t.Fatalf("right rejected")
	}
	select {
	case <-ch:
		t.Fatalf("direction change should not draw")
	default:
	}

	s.step()
	select {
	case st := <-ch:
		if st.Head() != (game.Position{X: 220, Y: 200}) || st.Tick != 1 {
			t.Fatalf("published head=%v tick=%d", st.Head(), st.Tick)
		}
	default:
		t.Fatalf("no frame after step")
	}
	if s.State().Tick != 1 {
		t.Fatalf("State().Tick = %d, want 1", s.State().Tick)
	}
}

func TestIdleStepStillDraws(t *testing.T) {
	s := newTestSession(t, time.Hour)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	if ev := s.step(); ev != game.EventIdle {
		t.Fatalf("event = %s, want idle", ev)
	}
	select {
	case st := <-ch:
		if st.Phase != game.PhaseIdle {
			t.Fatalf("phase = %s", st.Phase)
		}
	default:
		t.Fatalf("idle tick did not draw")
	}
}

func TestStepCollisionResets(t *testing.T) {
	s := newTestSession(t, time.Hour)
	reply := make(chan bool, 1)
	s.handle(setDirection{dir: game.Left, reply: reply})
	<-reply

	var ev game.Event
	for i := 0; i < 25 && ev != game.EventCollided; i++ {
		ev = s.step()
	}
	if ev != game.EventCollided {
		t.Fatalf("no collision after 25 steps")
	}
	st := s.State()
	if st.Phase != game.PhaseIdle || len(st.Snake) != 1 || st.Score != 0 {
		t.Fatalf("state after collision = %+v", st)
	}
	if st.Generation != 2 {
		t.Fatalf("generation = %d, want 2", st.Generation)
	}
}

func TestHandleResetRestartsSchedule(t *testing.T) {
	s := newTestSession(t, time.Hour)
	reply := make(chan bool, 1)
	s.handle(setDirection{dir: game.Up, reply: reply})
	<-reply
	s.step()

	rr := make(chan game.State, 1)
	if restart := s.handle(reset{reply: rr}); !restart {
		t.Fatalf("reset did not ask for a new schedule")
	}
	st := <-rr
	if st.Phase != game.PhaseIdle || st.Head() != st.Board.Center() {
		t.Fatalf("state after reset = %+v", st)
	}
	if restart := s.handle(setDirection{dir: game.Up, reply: reply}); restart {
		t.Fatalf("direction change asked for a new schedule")
	}
}

func TestRunTicksAndStops(t *testing.T) {
	s := newTestSession(t, 5*time.Millisecond)
	go s.Run()
	defer s.Stop()

	ch, cancel := s.Subscribe(16)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	ok, err := s.SetDirection(ctx, game.Down)
	if err != nil || !ok {
		t.Fatalf("SetDirection = %v, %v", ok, err)
	}

	timeout := time.After(time.Second)
	for {
		select {
		case st := <-ch:
			if st.Tick > 0 {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for a moving frame")
		}
	}
}

func TestRunReset(t *testing.T) {
	s := newTestSession(t, 5*time.Millisecond)
	go s.Run()
	defer s.Stop()

	ctx := context.Background()
	if _, err := s.SetDirection(ctx, game.Right); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	st, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st.Phase != game.PhaseIdle || len(st.Snake) != 1 || st.Score != 0 {
		t.Fatalf("reset state = %+v", st)
	}
}

func TestCallsAfterStopFail(t *testing.T) {
	s := newTestSession(t, 5*time.Millisecond)
	ch, _ := s.Subscribe(1)
	go s.Run()
	s.Stop()
	s.Stop()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}

	for range ch {
	}

	ctx := context.Background()
	if _, err := s.SetDirection(ctx, game.Up); !errors.Is(err, ErrStopped) {
		t.Fatalf("SetDirection err = %v, want ErrStopped", err)
	}
	if _, err := s.Reset(ctx); !errors.Is(err, ErrStopped) {
		t.Fatalf("Reset err = %v, want ErrStopped", err)
	}
	late, _ := s.Subscribe(1)
	if _, open := <-late; open {
		t.Fatalf("subscription after stop should be closed")
	}
}

func TestCanceledContext(t *testing.T) {
	s := newTestSession(t, time.Hour) // not running
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SetDirection(ctx, game.Up); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := newTestSession(t, time.Hour)
	ch, cancel := s.Subscribe(1)
	if s.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", s.Subscribers())
	}
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("channel still open")
	}
	if s.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", s.Subscribers())
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newTestSession(t, time.Hour)
	_, cancel := s.Subscribe(1)
	defer cancel()
	for i := 0; i < 10; i++ {
		s.step()
	}
	if s.State().Phase != game.PhaseIdle {
		t.Fatalf("unexpected phase")
	}
}

func TestRunResetRestartsTicker(t *testing.T) {
	const interval = 200 * time.Millisecond
	s := newTestSession(t, interval)
	ch, cancel := s.Subscribe(16)
	defer cancel()
	go s.Run()
	defer s.Stop()

	nextFrame(t, ch) // first scheduled tick
	time.Sleep(interval * 6 / 10)

	if _, err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	resetAt := time.Now()
	if st := nextFrame(t, ch); st.Generation != 2 {
		t.Fatalf("reset frame generation = %d, want 2", st.Generation)
	}

	// The old schedule would fire 0.4 intervals after the reset.
	nextFrame(t, ch)
	if gap := time.Since(resetAt); gap < interval*3/4 {
		t.Fatalf("tick %v after reset, want a full interval", gap)
	}

	if n := countFrames(ch, 5*interval); n > 6 {
		t.Fatalf("%d frames in 5 intervals, more than one schedule is running", n)
	}
}

func TestRunCollisionRestartsTicker(t *testing.T) {
	const interval = 100 * time.Millisecond
	// A single cell: the first move always hits the wall.
	s := newSessionOn(t, game.Board{Size: 20, Cell: 20}, Options{Interval: interval})
	ch, cancel := s.Subscribe(16)
	defer cancel()
	go s.Run()
	defer s.Stop()

	if ok, err := s.SetDirection(context.Background(), game.Right); err != nil || !ok {
		t.Fatalf("SetDirection = %v, %v", ok, err)
	}

	var collided time.Time
	for i := 0; i < 5; i++ {
		if st := nextFrame(t, ch); st.Generation == 2 {
			if st.Phase != game.PhaseIdle || st.Tick != 0 {
				t.Fatalf("state after collision = %+v", st)
			}
			collided = time.Now()
			break
		}
	}
	if collided.IsZero() {
		t.Fatalf("Run never reported the collision")
	}

	nextFrame(t, ch)
	if gap := time.Since(collided); gap < interval*3/4 {
		t.Fatalf("tick %v after collision, want a full interval", gap)
	}
	if n := countFrames(ch, 5*interval); n > 6 {
		t.Fatalf("%d frames in 5 intervals, more than one schedule is running", n)
	}
}

func TestRunEndsAtExpiry(t *testing.T) {
	clock := &fakeClock{}
	expired := make(chan string, 1)
	s := newSessionOn(t, game.DefaultBoard(), Options{
		Interval:  5 * time.Millisecond,
		ExpiresAt: clock.Now().Add(time.Hour),
		Now:       clock.Now,
		OnExpire:  func(id string) { expired <- id },
	})
	go s.Run()
	defer s.Stop()

	select {
	case <-s.Done():
		t.Fatalf("session ended before its expiry")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(2 * time.Hour)
	select {
	case id := <-expired:
		if id != "test" {
			t.Fatalf("OnExpire(%q)", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnExpire not called")
	}
	<-s.Done()
	if _, err := s.SetDirection(context.Background(), game.Up); !errors.Is(err, ErrStopped) {
		t.Fatalf("SetDirection err = %v, want ErrStopped", err)
	}
}

func TestRunEndsWhenIdleAndUnwatched(t *testing.T) {
	clock := &fakeClock{}
	expired := make(chan string, 1)
	s := newSessionOn(t, game.DefaultBoard(), Options{
		Interval:    5 * time.Millisecond,
		IdleTimeout: time.Minute,
		Now:         clock.Now,
		OnExpire:    func(id string) { expired <- id },
	})
	ch, cancel := s.Subscribe(1)
	go s.Run()
	defer s.Stop()

	clock.Advance(2 * time.Minute)
	select {
	case <-expired:
		t.Fatalf("watched session expired")
	case <-time.After(50 * time.Millisecond):
	}

	// Leaving counts as activity; the idle period starts again.
	cancel()
	for range ch {
	}
	select {
	case <-expired:
		t.Fatalf("expired right after the last subscriber left")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(2 * time.Minute)
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("idle session never expired")
	}
}
