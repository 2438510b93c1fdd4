// Package validate decides whether a proposed artist name is a legal
// move: it resolves the name to a canonical identity and checks for a
// recording-level collaboration with the previously accepted artist,
// primary source first, fallback source second.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/medley/internal/domain/model"
	"github.com/okian/medley/pkg/logger"
	"github.com/okian/medley/pkg/metrics"
)

// Default retry configuration constants.
const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 300 * time.Millisecond
)

// PrimarySource is the authoritative lookup service (MusicBrainz in
// production). RelationExists is restricted to shared recording credits;
// shared release or compilation membership must not count.
type PrimarySource interface {
	// Resolve returns the canonical identity for a free-text name, or
	// (nil, nil) when no artist matches.
	Resolve(ctx context.Context, name string) (*model.CanonicalIdentity, error)

	// RelationExists reports whether two artist ids share at least one
	// recording credit.
	RelationExists(ctx context.Context, idA, idB string) (bool, error)

	// KnownRelations lists every artist id the given artist shares a
	// recording credit with.
	KnownRelations(ctx context.Context, id string) ([]string, error)
}

// FallbackSource is the secondary lookup service (Deezer in production),
// queried by display name when the primary source finds no relation.
type FallbackSource interface {
	// FindID returns the source's id for a name, or "" when unknown.
	FindID(ctx context.Context, name string) (string, error)

	// RelationExists reports whether two artists, addressed by name,
	// share a recording.
	RelationExists(ctx context.Context, nameA, nameB string) (bool, error)
}

// Validator is the contract the turn engine consumes.
type Validator interface {
	Validate(ctx context.Context, previous *model.CanonicalIdentity, proposedName string) model.ValidationOutcome
}

// Chain implements Validator with confirmed-result caching and per-key
// single flight across concurrent lookups.
type Chain struct {
	primary  PrimarySource
	fallback FallbackSource

	resolveCache  *cache[resolveEntry]
	relationCache *cache[relationEntry]
	degreeCache   *cache[[]string]
	flight        singleflight.Group

	retryAttempts int
	retryDelay    time.Duration

	logger logger.Logger
}

type resolveEntry struct {
	identity model.CanonicalIdentity
	resolved bool
}

type relationEntry struct {
	holds  bool
	source model.Source
}

// NewChain creates a validation chain over the two sources.
func NewChain(primary PrimarySource, fallback FallbackSource, opts ...Option) *Chain {
	c := &Chain{
		primary:       primary,
		fallback:      fallback,
		resolveCache:  newCache[resolveEntry](defaultCacheSize),
		relationCache: newCache[relationEntry](defaultCacheSize),
		degreeCache:   newCache[[]string](defaultCacheSize),
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		logger:        logger.Get().Named("validate"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Validate resolves proposedName and, unless previous is nil, checks the
// collaboration predicate. It never returns an error: source failures
// degrade to unresolved / relation-not-found after the retry budget.
func (c *Chain) Validate(ctx context.Context, previous *model.CanonicalIdentity, proposedName string) model.ValidationOutcome {
	name := model.NormalizeName(proposedName)
	if name == "" {
		return model.ValidationOutcome{}
	}

	identity, resolved := c.resolve(ctx, name)
	if !resolved {
		return model.ValidationOutcome{}
	}

	out := model.ValidationOutcome{Resolved: true, Canonical: identity}

	// The opening move has nothing to chain against; it always holds.
	if previous == nil {
		out.RelationHolds = true
		return out
	}

	holds, source, confirmed := c.relation(ctx, *previous, identity)
	if !holds {
		return out
	}
	out.RelationHolds = true
	out.Source = source
	metrics.RecordValidationBySource(string(source))

	if confirmed && c.isDegenerate(ctx, identity, *previous) {
		out.DegenerateRelation = true
	}

	return out
}

// resolve returns the canonical identity for a normalized name. Results,
// positive or negative, are cached only when the source answered; an
// exhausted-retry failure is not a confirmed miss and stays uncached.
func (c *Chain) resolve(ctx context.Context, name string) (model.CanonicalIdentity, bool) {
	key := "resolve:" + name
	if entry, ok := c.resolveCache.get(key); ok {
		metrics.RecordValidationCacheHit()
		return entry.identity, entry.resolved
	}
	metrics.RecordValidationCacheMiss()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		var identity *model.CanonicalIdentity
		err := c.withRetry(ctx, func() error {
			var inner error
			identity, inner = c.primary.Resolve(ctx, name)
			return inner
		})
		if err != nil {
			return resolveEntry{}, err
		}

		entry := resolveEntry{}
		if identity != nil {
			entry = resolveEntry{identity: *identity, resolved: true}
		}
		c.resolveCache.put(key, entry)
		return entry, nil
	})
	if err != nil {
		c.logger.Warn(ctx, "artist resolution degraded to not-found",
			logger.String("name", name),
			logger.Error(err),
		)
		metrics.RecordSourceError("primary")
		return model.CanonicalIdentity{}, false
	}

	entry := v.(resolveEntry)
	return entry.identity, entry.resolved
}

// relation runs the two-source collaboration check. The third return
// reports whether the verdict is confirmed (cacheable) as opposed to a
// degraded answer from an error path.
func (c *Chain) relation(ctx context.Context, previous, candidate model.CanonicalIdentity) (bool, model.Source, bool) {
	key := relationKey(previous, candidate)
	if entry, ok := c.relationCache.get(key); ok {
		metrics.RecordValidationCacheHit()
		return entry.holds, entry.source, true
	}
	metrics.RecordValidationCacheMiss()

	type verdict struct {
		entry     relationEntry
		confirmed bool
	}

	v, _, _ := c.flight.Do(key, func() (any, error) {
		confirmed := true

		if previous.PrimaryID != "" && candidate.PrimaryID != "" {
			holds, err := c.primaryRelation(ctx, previous.PrimaryID, candidate.PrimaryID)
			if err != nil {
				metrics.RecordSourceError("primary")
				confirmed = false
			} else if holds {
				entry := relationEntry{holds: true, source: model.SourcePrimary}
				c.relationCache.put(key, entry)
				return verdict{entry: entry, confirmed: true}, nil
			}
		}

		holds, err := c.fallbackRelation(ctx, previous.DisplayName, candidate.DisplayName)
		if err != nil {
			metrics.RecordSourceError("fallback")
			confirmed = false
		} else if holds {
			entry := relationEntry{holds: true, source: model.SourceFallback}
			c.relationCache.put(key, entry)
			return verdict{entry: entry, confirmed: true}, nil
		}

		// A negative verdict is confirmed only when every source was
		// actually consulted without error; otherwise a later retry may
		// still succeed, so nothing is cached.
		if confirmed {
			c.relationCache.put(key, relationEntry{})
		}
		return verdict{confirmed: confirmed}, nil
	})

	res := v.(verdict)
	return res.entry.holds, res.entry.source, res.confirmed
}

func (c *Chain) primaryRelation(ctx context.Context, idA, idB string) (bool, error) {
	var holds bool
	err := c.withRetry(ctx, func() error {
		var inner error
		holds, inner = c.primary.RelationExists(ctx, idA, idB)
		return inner
	})
	return holds, err
}

func (c *Chain) fallbackRelation(ctx context.Context, nameA, nameB string) (bool, error) {
	var holds bool
	err := c.withRetry(ctx, func() error {
		var inner error
		holds, inner = c.fallback.RelationExists(ctx, nameA, nameB)
		return inner
	})
	return holds, err
}

// isDegenerate reports whether the candidate's only known collaborator
// is the previously accepted artist. Errors degrade to "not degenerate";
// a flaky listing must not reject an otherwise confirmed relation.
func (c *Chain) isDegenerate(ctx context.Context, candidate, previous model.CanonicalIdentity) bool {
	if candidate.PrimaryID == "" || previous.PrimaryID == "" {
		return false
	}

	key := "relations:" + candidate.PrimaryID
	relations, ok := c.degreeCache.get(key)
	if !ok {
		v, err, _ := c.flight.Do(key, func() (any, error) {
			var ids []string
			err := c.withRetry(ctx, func() error {
				var inner error
				ids, inner = c.primary.KnownRelations(ctx, candidate.PrimaryID)
				return inner
			})
			if err != nil {
				return nil, err
			}
			c.degreeCache.put(key, ids)
			return ids, nil
		})
		if err != nil {
			metrics.RecordSourceError("primary")
			return false
		}
		relations = v.([]string)
	}

	return len(relations) == 1 && relations[0] == previous.PrimaryID
}

// withRetry runs op with a bounded fixed-delay retry limited to
// transient errors. Non-transient errors propagate immediately.
func (c *Chain) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		metrics.RecordSourceRetry()
		if attempt == c.retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
	return fmt.Errorf("retries exhausted: %w", err)
}

// relationKey builds an unordered cache key for a pair of identities.
func relationKey(a, b model.CanonicalIdentity) string {
	ka, kb := a.DedupKey(), b.DedupKey()
	pair := []string{ka, kb}
	sort.Strings(pair)
	return "relation:" + strings.Join(pair, "|")
}
