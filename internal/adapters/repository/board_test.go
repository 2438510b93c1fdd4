package repository_test

import (
	"context"
	"fmt"
	"testing"

	repository "github.com/okian/medley/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTreapBoard(t *testing.T) {
	Convey("Given an empty treap board", t, func() {
		ctx := context.Background()
		board := repository.NewTreapBoard()

		Convey("When a first score is recorded", func() {
			changed, err := board.UpdateBest(ctx, "alice", 300, "run-1", 5)

			Convey("Then it lands at rank one", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				entry, err := board.Rank(ctx, "alice")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 1)
				So(entry.Score, ShouldEqual, 300)
				So(entry.RunID, ShouldEqual, "run-1")
				So(entry.Turns, ShouldEqual, 5)
			})
		})

		Convey("When a lower score arrives for the same player", func() {
			_, _ = board.UpdateBest(ctx, "alice", 300, "run-1", 5)
			changed, err := board.UpdateBest(ctx, "alice", 200, "run-2", 4)

			Convey("Then the board keeps the personal best", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				entry, _ := board.Rank(ctx, "alice")
				So(entry.Score, ShouldEqual, 300)
				So(entry.RunID, ShouldEqual, "run-1")
			})
		})

		Convey("When a higher score replaces the best", func() {
			_, _ = board.UpdateBest(ctx, "alice", 300, "run-1", 5)
			changed, _ := board.UpdateBest(ctx, "alice", 450, "run-3", 8)

			Convey("Then the new run shows on the board once", func() {
				So(changed, ShouldBeTrue)
				So(board.Count(ctx), ShouldEqual, 1)
				entry, _ := board.Rank(ctx, "alice")
				So(entry.Score, ShouldEqual, 450)
				So(entry.RunID, ShouldEqual, "run-3")
			})
		})

		Convey("When several players are on the board", func() {
			_, _ = board.UpdateBest(ctx, "alice", 300, "r-a", 5)
			_, _ = board.UpdateBest(ctx, "bob", 500, "r-b", 9)
			_, _ = board.UpdateBest(ctx, "carol", 400, "r-c", 7)

			Convey("Then TopN walks best to worst", func() {
				entries, err := board.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 3)
				So(entries[0].PlayerID, ShouldEqual, "bob")
				So(entries[1].PlayerID, ShouldEqual, "carol")
				So(entries[2].PlayerID, ShouldEqual, "alice")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[2].Rank, ShouldEqual, 3)
			})

			Convey("And TopN truncates to n", func() {
				entries, err := board.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[1].PlayerID, ShouldEqual, "carol")
			})

			Convey("And Rank matches the TopN position", func() {
				entry, err := board.Rank(ctx, "carol")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 2)
			})
		})

		Convey("When players tie on score", func() {
			_, _ = board.UpdateBest(ctx, "zoe", 300, "r-z", 5)
			_, _ = board.UpdateBest(ctx, "adam", 300, "r-a", 5)

			Convey("Then player id breaks the tie deterministically", func() {
				entries, _ := board.TopN(ctx, 2)
				So(entries[0].PlayerID, ShouldEqual, "adam")
				So(entries[1].PlayerID, ShouldEqual, "zoe")
			})
		})

		Convey("When querying an unknown player", func() {
			_, err := board.Rank(ctx, "ghost")

			Convey("Then it is a not-found error", func() {
				So(err, ShouldEqual, repository.ErrPlayerNotFound)
			})
		})

		Convey("When asking for a non-positive limit", func() {
			_, err := board.TopN(ctx, 0)

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, repository.ErrInvalidLimit)
			})
		})

		Convey("When many players churn through the board", func() {
			for i := range 200 {
				id := fmt.Sprintf("p%03d", i)
				_, _ = board.UpdateBest(ctx, id, i, "r", 1)
			}
			// Second wave of improvements for half of them.
			for i := 0; i < 200; i += 2 {
				id := fmt.Sprintf("p%03d", i)
				_, _ = board.UpdateBest(ctx, id, 1000+i, "r2", 2)
			}

			Convey("Then ranks stay consistent with traversal order", func() {
				So(board.Count(ctx), ShouldEqual, 200)
				entries, _ := board.TopN(ctx, 200)
				So(entries, ShouldHaveLength, 200)
				for i, e := range entries {
					So(e.Rank, ShouldEqual, i+1)
					ranked, err := board.Rank(ctx, e.PlayerID)
					So(err, ShouldBeNil)
					So(ranked.Rank, ShouldEqual, i+1)
					if i > 0 {
						So(e.Score, ShouldBeLessThanOrEqualTo, entries[i-1].Score)
					}
				}
			})
		})
	})
}
