package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/medley/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with room", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("When results are enqueued", func() {
			ok1 := q.Enqueue(ctx, queue.Result{EventID: "e1", PlayerID: "p1", Score: 300})
			ok2 := q.Enqueue(ctx, queue.Result{EventID: "e2", PlayerID: "p2", Score: 500})

			Convey("Then both are accepted and counted", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And they dequeue in order", func() {
				out := q.Dequeue(ctx)
				first := <-out
				second := <-out
				So(first.EventID, ShouldEqual, "e1")
				So(second.EventID, ShouldEqual, "e2")
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, queue.Result{EventID: "e1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Result{EventID: "e2"}), ShouldBeTrue)

			Convey("Then the next enqueue is dropped without blocking", func() {
				done := make(chan bool, 1)
				go func() { done <- q.Enqueue(ctx, queue.Result{EventID: "e3"}) }()

				select {
				case ok := <-done:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("enqueue blocked on a full queue")
				}
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.Result{EventID: "e1"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueues fail but buffered results still drain", func() {
				So(q.Enqueue(ctx, queue.Result{EventID: "e2"}), ShouldBeFalse)

				out := q.Dequeue(ctx)
				r, open := <-out
				So(open, ShouldBeTrue)
				So(r.EventID, ShouldEqual, "e1")

				_, open = <-out
				So(open, ShouldBeFalse)
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
