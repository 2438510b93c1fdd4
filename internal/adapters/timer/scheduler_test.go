package timer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	timer "github.com/okian/medley/internal/adapters/timer"
	"github.com/okian/medley/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// manualTimer collects armed callbacks and fires them by hand.
type manualTimer struct {
	mu    sync.Mutex
	armed []*manualHandle
}

type manualHandle struct {
	fire      func()
	cancelled bool
}

func (m *manualTimer) AfterFunc(_ time.Duration, fire func()) timer.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &manualHandle{fire: fire}
	m.armed = append(m.armed, h)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		was := !h.cancelled
		h.cancelled = true
		return was
	}
}

// FireAll runs every armed, uncancelled callback.
func (m *manualTimer) FireAll() {
	m.mu.Lock()
	handles := append([]*manualHandle(nil), m.armed...)
	m.armed = nil
	m.mu.Unlock()
	for _, h := range handles {
		if !h.cancelled {
			h.fire()
		}
	}
}

type firedEvent struct {
	entityID string
	epoch    uint64
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler over a manual timer", t, func() {
		mt := &manualTimer{}
		var mu sync.Mutex
		var fired []firedEvent
		s := timer.NewScheduler(
			func(_ context.Context, entityID string, epoch uint64) {
				mu.Lock()
				fired = append(fired, firedEvent{entityID, epoch})
				mu.Unlock()
			},
			timer.WithAfterFunc(mt.AfterFunc),
		)

		Convey("When a deadline is scheduled and expires", func() {
			s.Schedule(context.Background(), "e1", 7, time.Second)
			So(s.Pending(), ShouldEqual, 1)
			mt.FireAll()

			Convey("Then the callback carries the entity and epoch", func() {
				So(fired, ShouldResemble, []firedEvent{{"e1", 7}})
				So(s.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When a deadline is cancelled before expiry", func() {
			s.Schedule(context.Background(), "e1", 7, time.Second)
			s.Cancel("e1")
			mt.FireAll()

			Convey("Then nothing fires", func() {
				So(fired, ShouldBeEmpty)
				So(s.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When a new turn replaces a pending deadline", func() {
			s.Schedule(context.Background(), "e1", 7, time.Second)
			s.Schedule(context.Background(), "e1", 8, time.Second)
			So(s.Pending(), ShouldEqual, 1)
			mt.FireAll()

			Convey("Then only the newest epoch fires", func() {
				So(fired, ShouldResemble, []firedEvent{{"e1", 8}})
			})
		})

		Convey("When deadlines exist for several entities", func() {
			s.Schedule(context.Background(), "e1", 1, time.Second)
			s.Schedule(context.Background(), "e2", 1, time.Second)
			So(s.Pending(), ShouldEqual, 2)

			Convey("And Stop cancels them all", func() {
				s.Stop()
				mt.FireAll()
				So(fired, ShouldBeEmpty)
				So(s.Pending(), ShouldEqual, 0)
			})

			Convey("And Cancel only touches its own entity", func() {
				s.Cancel("e1")
				mt.FireAll()
				So(fired, ShouldResemble, []firedEvent{{"e2", 1}})
			})
		})

		Convey("When cancelling an entity with no pending deadline", func() {
			Convey("Then it is a no-op", func() {
				So(func() { s.Cancel("ghost") }, ShouldNotPanic)
				So(s.Pending(), ShouldEqual, 0)
			})
		})
	})
}
