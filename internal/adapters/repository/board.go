package repository

import (
	"context"
	"math/rand"
	"sync"

	"github.com/okian/medley/pkg/metrics"
)

// Treap-backed, in-memory Board implementation.
//
// Ordering: score DESC, then playerID ASC (deterministic). "less" means
// ranks earlier, so in-order traversal walks the board best to worst.
// The size augmentation gives O(log n) rank queries.

type record struct {
	score int
	runID string
	turns int
}

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks earlier than (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

// TreapBoard implements Board.
type TreapBoard struct {
	mu   sync.RWMutex
	root *node
	best map[string]record
	rng  *rand.Rand
}

// NewTreapBoard creates an empty board.
func NewTreapBoard() *TreapBoard {
	return &TreapBoard{
		best: make(map[string]record),
		rng:  rand.New(rand.NewSource(1)), //nolint:gosec // treap priorities need no crypto randomness
	}
}

// UpdateBest records a run score if it beats the player's current best.
func (b *TreapBoard) UpdateBest(_ context.Context, playerID string, score int, runID string, turns int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, exists := b.best[playerID]
	if exists && score <= current.score {
		return false, nil
	}
	if exists {
		b.root = remove(b.root, current.score, playerID)
	}
	b.root = b.insert(b.root, &node{
		id:    playerID,
		score: score,
		prio:  b.rng.Uint64(),
		size:  1,
	})
	b.best[playerID] = record{score: score, runID: runID, turns: turns}
	metrics.UpdateBoardPlayers(len(b.best))
	return true, nil
}

// Rank returns the player's current standing.
func (b *TreapBoard) Rank(_ context.Context, playerID string) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	current, ok := b.best[playerID]
	if !ok {
		return Entry{}, ErrPlayerNotFound
	}
	return Entry{
		Rank:     rankOf(b.root, current.score, playerID),
		PlayerID: playerID,
		Score:    current.score,
		RunID:    current.runID,
		Turns:    current.turns,
	}, nil
}

// TopN returns the best n entries.
func (b *TreapBoard) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := make([]Entry, 0, n)
	collect(b.root, n, &entries)
	for i := range entries {
		entries[i].Rank = i + 1
		rec := b.best[entries[i].PlayerID]
		entries[i].RunID = rec.runID
		entries[i].Turns = rec.turns
	}
	return entries, nil
}

// Count returns the number of players on the board.
func (b *TreapBoard) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.best)
}

// insert places nd by board order, rotating to restore heap priority.
func (b *TreapBoard) insert(t, nd *node) *node {
	if t == nil {
		return nd
	}
	if less(nd.score, nd.id, t.score, t.id) {
		t.left = b.insert(t.left, nd)
		if t.left.prio > t.prio {
			t = rotateRight(t)
		}
	} else {
		t.right = b.insert(t.right, nd)
		if t.right.prio > t.prio {
			t = rotateLeft(t)
		}
	}
	fix(t)
	return t
}

// remove deletes the node matching (score, id).
func remove(t *node, score int, id string) *node {
	if t == nil {
		return nil
	}
	switch {
	case t.score == score && t.id == id:
		t = mergeChildren(t.left, t.right)
	case less(score, id, t.score, t.id):
		t.left = remove(t.left, score, id)
	default:
		t.right = remove(t.right, score, id)
	}
	fix(t)
	return t
}

// mergeChildren joins two subtrees whose orders do not overlap.
func mergeChildren(l, r *node) *node {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	case l.prio > r.prio:
		l.right = mergeChildren(l.right, r)
		fix(l)
		return l
	default:
		r.left = mergeChildren(l, r.left)
		fix(r)
		return r
	}
}

func rotateRight(t *node) *node {
	l := t.left
	t.left = l.right
	l.right = t
	fix(t)
	fix(l)
	return l
}

func rotateLeft(t *node) *node {
	r := t.right
	t.right = r.left
	r.left = t
	fix(t)
	fix(r)
	return r
}

// rankOf counts how many entries rank earlier than (score, id), plus one.
func rankOf(t *node, score int, id string) int {
	rank := 1
	for t != nil {
		if less(score, id, t.score, t.id) {
			t = t.left
		} else if t.score == score && t.id == id {
			rank += nsize(t.left)
			return rank
		} else {
			rank += nsize(t.left) + 1
			t = t.right
		}
	}
	return rank
}

// collect appends the first n entries of the in-order traversal.
func collect(t *node, n int, out *[]Entry) {
	if t == nil || len(*out) >= n {
		return
	}
	collect(t.left, n, out)
	if len(*out) < n {
		*out = append(*out, Entry{PlayerID: t.id, Score: t.score})
		collect(t.right, n, out)
	}
}
