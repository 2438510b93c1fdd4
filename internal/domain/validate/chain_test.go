package validate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/medley/internal/domain/model"
	validate "github.com/okian/medley/internal/domain/validate"
	"github.com/okian/medley/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// fakePrimary scripts the primary source and counts calls per method.
type fakePrimary struct {
	artists   map[string]model.CanonicalIdentity
	relations map[string]bool // "idA|idB" sorted
	known     map[string][]string

	resolveErr  error
	relationErr error
	knownErr    error

	// errsLeft makes the first N calls fail before recovering.
	resolveErrsLeft int

	resolveCalls  int
	relationCalls int
	knownCalls    int
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (f *fakePrimary) Resolve(_ context.Context, name string) (*model.CanonicalIdentity, error) {
	f.resolveCalls++
	if f.resolveErrsLeft > 0 {
		f.resolveErrsLeft--
		return nil, validate.ErrTransient
	}
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if id, ok := f.artists[model.NormalizeName(name)]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakePrimary) RelationExists(_ context.Context, idA, idB string) (bool, error) {
	f.relationCalls++
	if f.relationErr != nil {
		return false, f.relationErr
	}
	return f.relations[pairKey(idA, idB)], nil
}

func (f *fakePrimary) KnownRelations(_ context.Context, id string) ([]string, error) {
	f.knownCalls++
	if f.knownErr != nil {
		return nil, f.knownErr
	}
	return f.known[id], nil
}

// fakeFallback scripts the fallback source.
type fakeFallback struct {
	ids       map[string]string
	relations map[string]bool // "nameA|nameB" normalized sorted

	relationErr error

	findCalls     int
	relationCalls int
}

func (f *fakeFallback) FindID(_ context.Context, name string) (string, error) {
	f.findCalls++
	return f.ids[model.NormalizeName(name)], nil
}

func (f *fakeFallback) RelationExists(_ context.Context, nameA, nameB string) (bool, error) {
	f.relationCalls++
	if f.relationErr != nil {
		return false, f.relationErr
	}
	return f.relations[pairKey(model.NormalizeName(nameA), model.NormalizeName(nameB))], nil
}

func fixtures() (*fakePrimary, *fakeFallback) {
	primary := &fakePrimary{
		artists: map[string]model.CanonicalIdentity{
			"daft punk": {DisplayName: "Daft Punk", PrimaryID: "mb-daft"},
			"pharrell":  {DisplayName: "Pharrell", PrimaryID: "mb-pharrell"},
			"loop act":  {DisplayName: "Loop Act", PrimaryID: "mb-loop"},
			"obscure":   {DisplayName: "Obscure", PrimaryID: "mb-obscure"},
		},
		relations: map[string]bool{
			pairKey("mb-daft", "mb-pharrell"): true,
			pairKey("mb-daft", "mb-loop"):     true,
		},
		known: map[string][]string{
			"mb-pharrell": {"mb-daft", "mb-nile", "mb-snoop"},
			"mb-loop":     {"mb-daft"},
		},
	}
	fallback := &fakeFallback{
		ids: map[string]string{"obscure": "dz-9"},
		relations: map[string]bool{
			pairKey("daft punk", "obscure"): true,
		},
	}
	return primary, fallback
}

func newChain(primary *fakePrimary, fallback *fakeFallback) *validate.Chain {
	return validate.NewChain(primary, fallback,
		validate.WithRetry(3, time.Millisecond),
	)
}

func TestValidate(t *testing.T) {
	Convey("Given a validation chain over two scripted sources", t, func() {
		ctx := context.Background()
		primary, fallback := fixtures()
		chain := newChain(primary, fallback)
		daft := model.CanonicalIdentity{DisplayName: "Daft Punk", PrimaryID: "mb-daft"}

		Convey("When validating an opening move", func() {
			out := chain.Validate(ctx, nil, "Daft Punk")

			Convey("Then it resolves and holds without any relation call", func() {
				So(out.Resolved, ShouldBeTrue)
				So(out.RelationHolds, ShouldBeTrue)
				So(out.Canonical.PrimaryID, ShouldEqual, "mb-daft")
				So(primary.relationCalls, ShouldEqual, 0)
				So(fallback.relationCalls, ShouldEqual, 0)
			})
		})

		Convey("When the primary source confirms the collaboration", func() {
			out := chain.Validate(ctx, &daft, "Pharrell")

			Convey("Then the verdict is primary-sourced", func() {
				So(out.Resolved, ShouldBeTrue)
				So(out.RelationHolds, ShouldBeTrue)
				So(out.Source, ShouldEqual, model.SourcePrimary)
				So(out.DegenerateRelation, ShouldBeFalse)
			})

			Convey("And the fallback was never consulted", func() {
				So(fallback.relationCalls, ShouldEqual, 0)
			})
		})

		Convey("When only the fallback knows the collaboration", func() {
			out := chain.Validate(ctx, &daft, "Obscure")

			Convey("Then the verdict is fallback-sourced", func() {
				So(out.RelationHolds, ShouldBeTrue)
				So(out.Source, ShouldEqual, model.SourceFallback)
				So(primary.relationCalls, ShouldEqual, 1)
				So(fallback.relationCalls, ShouldEqual, 1)
			})
		})

		Convey("When no source knows the pair", func() {
			primary.artists["nobody linked"] = model.CanonicalIdentity{DisplayName: "Nobody Linked", PrimaryID: "mb-nl"}
			out := chain.Validate(ctx, &daft, "Nobody Linked")

			Convey("Then the relation does not hold", func() {
				So(out.Resolved, ShouldBeTrue)
				So(out.RelationHolds, ShouldBeFalse)
			})
		})

		Convey("When the name resolves to nothing", func() {
			out := chain.Validate(ctx, &daft, "Completely Unknown")

			Convey("Then the outcome is unresolved", func() {
				So(out.Resolved, ShouldBeFalse)
				So(out.RelationHolds, ShouldBeFalse)
			})
		})

		Convey("When the name is blank", func() {
			out := chain.Validate(ctx, &daft, "   ")

			Convey("Then the outcome is unresolved without any source call", func() {
				So(out.Resolved, ShouldBeFalse)
				So(primary.resolveCalls, ShouldEqual, 0)
			})
		})

		Convey("When the candidate's only collaborator is the previous artist", func() {
			out := chain.Validate(ctx, &daft, "Loop Act")

			Convey("Then the relation is flagged degenerate", func() {
				So(out.RelationHolds, ShouldBeTrue)
				So(out.DegenerateRelation, ShouldBeTrue)
			})
		})
	})
}

func TestCaching(t *testing.T) {
	Convey("Given a validation chain", t, func() {
		ctx := context.Background()
		primary, fallback := fixtures()
		chain := newChain(primary, fallback)
		daft := model.CanonicalIdentity{DisplayName: "Daft Punk", PrimaryID: "mb-daft"}

		Convey("When the same confirmed pair is validated twice", func() {
			first := chain.Validate(ctx, &daft, "Pharrell")
			resolveCalls, relationCalls := primary.resolveCalls, primary.relationCalls
			second := chain.Validate(ctx, &daft, "Pharrell")

			Convey("Then the second answer comes from cache", func() {
				So(second.RelationHolds, ShouldEqual, first.RelationHolds)
				So(second.Source, ShouldEqual, first.Source)
				So(primary.resolveCalls, ShouldEqual, resolveCalls)
				So(primary.relationCalls, ShouldEqual, relationCalls)
			})
		})

		Convey("When a clean negative verdict is repeated", func() {
			primary.artists["nobody linked"] = model.CanonicalIdentity{DisplayName: "Nobody Linked", PrimaryID: "mb-nl"}
			_ = chain.Validate(ctx, &daft, "Nobody Linked")
			relationCalls, fallbackCalls := primary.relationCalls, fallback.relationCalls
			out := chain.Validate(ctx, &daft, "Nobody Linked")

			Convey("Then the miss was cached too", func() {
				So(out.RelationHolds, ShouldBeFalse)
				So(primary.relationCalls, ShouldEqual, relationCalls)
				So(fallback.relationCalls, ShouldEqual, fallbackCalls)
			})
		})

		Convey("When a confirmed resolve miss is repeated", func() {
			_ = chain.Validate(ctx, nil, "Completely Unknown")
			calls := primary.resolveCalls
			out := chain.Validate(ctx, nil, "Completely Unknown")

			Convey("Then the not-found answer is served from cache", func() {
				So(out.Resolved, ShouldBeFalse)
				So(primary.resolveCalls, ShouldEqual, calls)
			})
		})
	})
}

func TestRetriesAndDegradation(t *testing.T) {
	Convey("Given a validation chain with a flaky primary source", t, func() {
		ctx := context.Background()
		daft := model.CanonicalIdentity{DisplayName: "Daft Punk", PrimaryID: "mb-daft"}

		Convey("When resolve fails transiently once", func() {
			primary, fallback := fixtures()
			primary.resolveErrsLeft = 1
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, nil, "Daft Punk")

			Convey("Then the retry recovers inside one Validate call", func() {
				So(out.Resolved, ShouldBeTrue)
				So(primary.resolveCalls, ShouldEqual, 2)
			})
		})

		Convey("When resolve fails transiently beyond the budget", func() {
			primary, fallback := fixtures()
			primary.resolveErrsLeft = 10
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, nil, "Daft Punk")

			Convey("Then it degrades to unresolved after three tries", func() {
				So(out.Resolved, ShouldBeFalse)
				So(primary.resolveCalls, ShouldEqual, 3)
			})

			Convey("And the failure was not cached, so a later attempt retries", func() {
				So(out.Resolved, ShouldBeFalse)
				primary.resolveErrsLeft = 0
				recovered := chain.Validate(ctx, nil, "Daft Punk")
				So(recovered.Resolved, ShouldBeTrue)
			})
		})

		Convey("When resolve fails with a non-transient error", func() {
			primary, fallback := fixtures()
			primary.resolveErr = validate.ErrBadQuery
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, nil, "Daft Punk")

			Convey("Then it fails fast without retrying", func() {
				So(out.Resolved, ShouldBeFalse)
				So(primary.resolveCalls, ShouldEqual, 1)
			})
		})

		Convey("When the primary relation check errors but the fallback confirms", func() {
			primary, fallback := fixtures()
			primary.relationErr = errors.New("boom")
			fallback.relations[pairKey("daft punk", "pharrell")] = true
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, &daft, "Pharrell")

			Convey("Then the verdict holds, attributed to the fallback", func() {
				So(out.RelationHolds, ShouldBeTrue)
				So(out.Source, ShouldEqual, model.SourceFallback)
			})
		})

		Convey("When both relation checks error", func() {
			primary, fallback := fixtures()
			primary.relationErr = errors.New("boom")
			fallback.relationErr = errors.New("boom")
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, &daft, "Pharrell")
			So(out.RelationHolds, ShouldBeFalse)

			Convey("Then the degraded miss is not cached and can recover", func() {
				primary.relationErr = nil
				fallback.relationErr = nil
				recovered := chain.Validate(ctx, &daft, "Pharrell")
				So(recovered.RelationHolds, ShouldBeTrue)
				So(recovered.Source, ShouldEqual, model.SourcePrimary)
			})
		})

		Convey("When listing known relations fails during the degenerate check", func() {
			primary, fallback := fixtures()
			primary.knownErr = errors.New("boom")
			chain := newChain(primary, fallback)

			out := chain.Validate(ctx, &daft, "Loop Act")

			Convey("Then the confirmed relation is not rejected", func() {
				So(out.RelationHolds, ShouldBeTrue)
				So(out.DegenerateRelation, ShouldBeFalse)
			})
		})
	})
}
