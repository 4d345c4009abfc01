package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/posscan/internal/clock"
)

// Station runs a Detector on a single goroutine.
//
// Thread-safety model:
//   - HandleKey, SetModalActive, SetMode, SetBuffer: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Timer callbacks from the underlying scheduler never touch the detector
// directly: they enqueue a fire event, and Run drops the event if the timer
// was stopped in the meantime.
type Station struct {
	queue    *eventQueue
	detector *Detector
	sched    clock.Scheduler
	session  string
	logger   *slog.Logger

	// Owned by the Run goroutine.
	timers      map[int64]func()
	nextTimerID int64
}

// StationOption configures a Station.
type StationOption func(*stationConfig)

type stationConfig struct {
	sched    clock.Scheduler
	sessions SessionGenerator
	logger   *slog.Logger
	detector []Option
}

// WithScheduler sets the timer source. Default: clock.System.
func WithScheduler(s clock.Scheduler) StationOption {
	return func(c *stationConfig) {
		c.sched = s
	}
}

// WithSessions sets the session id generator. Default: UUIDv7Generator.
func WithSessions(g SessionGenerator) StationOption {
	return func(c *stationConfig) {
		c.sessions = g
	}
}

// WithStationLogger sets the station and detector logger.
func WithStationLogger(l *slog.Logger) StationOption {
	return func(c *stationConfig) {
		c.logger = l
	}
}

// WithDetectorOptions passes options through to the Detector.
func WithDetectorOptions(opts ...Option) StationOption {
	return func(c *stationConfig) {
		c.detector = append(c.detector, opts...)
	}
}

// NewStation creates a station and its detector. c supplies key timestamps.
func NewStation(c clock.Clock, index ProductIndex, cart CartAdder, opts ...StationOption) *Station {
	cfg := stationConfig{
		sched:    clock.System{},
		sessions: UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := &Station{
		queue:   newEventQueue(),
		sched:   cfg.sched,
		session: cfg.sessions.Generate(),
		logger:  cfg.logger,
		timers:  make(map[int64]func()),
	}

	detOpts := append([]Option{WithLogger(cfg.logger)}, cfg.detector...)
	st.detector = NewDetector(c, loopScheduler{st: st}, index, cart, detOpts...)
	return st
}

// Session returns the id of this mounted screen.
func (s *Station) Session() string {
	return s.session
}

// HandleKey enqueues a key press. Returns false once the station stopped.
func (s *Station) HandleKey(ev KeyEvent) bool {
	return s.queue.Enqueue(Event{Type: EventTypeKey, Key: ev})
}

// SetModalActive enqueues a modal open/close.
func (s *Station) SetModalActive(active bool) {
	s.queue.Enqueue(Event{Type: EventTypeModal, Modal: active})
}

// SetMode enqueues a mode toggle.
func (s *Station) SetMode(m Mode) {
	s.queue.Enqueue(Event{Type: EventTypeMode, Mode: m})
}

// SetBuffer enqueues a host-side edit of the search input.
func (s *Station) SetBuffer(v string) {
	s.queue.Enqueue(Event{Type: EventTypeBuffer, Buffer: v})
}

// Stop closes the queue; Run returns after draining it.
func (s *Station) Stop() {
	s.queue.Close()
}

// Run processes events until ctx is cancelled or Stop is called.
// On return the detector is closed and any armed timer is stopped.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (s *Station) Run(ctx context.Context) error {
	s.logger.Info("scan station starting", "session", s.session, "mode", s.detector.Mode().String())
	defer s.detector.Close()

	for {
		if ev, ok := s.queue.TryDequeue(); ok {
			s.process(ev)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scan station stopping: context cancelled", "session", s.session)
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel is closed with the queue, so a closed and
			// drained queue ends the loop.
			if s.queue.Len() == 0 && s.isClosed() {
				s.logger.Info("scan station stopping: queue closed", "session", s.session)
				return nil
			}
		}
	}
}

func (s *Station) isClosed() bool {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	return s.queue.closed
}

// process handles one event. Called only from Run.
func (s *Station) process(ev Event) {
	switch ev.Type {
	case EventTypeKey:
		s.detector.HandleKey(ev.Key)
	case EventTypeModal:
		s.detector.SetModalActive(ev.Modal)
	case EventTypeMode:
		s.detector.SetMode(ev.Mode)
	case EventTypeBuffer:
		s.detector.SetBuffer(ev.Buffer)
	case EventTypeFire:
		f, ok := s.timers[ev.timerID]
		if !ok {
			s.logger.Debug("dropping stale timer fire", "timer", ev.timerID)
			return
		}
		delete(s.timers, ev.timerID)
		f()
	default:
		s.logger.Error("unknown station event", "type", int(ev.Type))
	}
}

// loopScheduler is the detector's scheduler inside a Station. Both
// AfterFunc and Stop are called on the Run goroutine.
type loopScheduler struct {
	st *Station
}

func (l loopScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	st := l.st
	st.nextTimerID++
	id := st.nextTimerID
	st.timers[id] = f

	inner := st.sched.AfterFunc(d, func() {
		st.queue.Enqueue(Event{Type: EventTypeFire, timerID: id})
	})
	return &loopTimer{st: st, id: id, inner: inner}
}

type loopTimer struct {
	st    *Station
	id    int64
	inner clock.Timer
}

// Stop forgets the callback so a fire already sitting in the queue is
// dropped.
func (t *loopTimer) Stop() bool {
	t.inner.Stop()
	_, ok := t.st.timers[t.id]
	delete(t.st.timers, t.id)
	return ok
}
