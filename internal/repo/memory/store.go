// Package memory keeps likes, matches and their dependents in process memory.
// Every method is atomic on its own; Transactor does not add isolation across calls.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/repo/repoerr"
)

type directedKey struct {
	from string
	to   string
}

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	unavailable bool

	likes   map[directedKey]model.Like
	matches map[string]model.Match

	messages  map[string]string
	contracts map[string]string
	disputes  map[string]string
	reviews   map[string]string
}

func NewStore() *Store {
	return &Store{
		now:       time.Now,
		likes:     make(map[directedKey]model.Like),
		matches:   make(map[string]model.Match),
		messages:  make(map[string]string),
		contracts: make(map[string]string),
		disputes:  make(map[string]string),
		reviews:   make(map[string]string),
	}
}

func (s *Store) Likes() *LikeRepo {
	return &LikeRepo{store: s}
}

func (s *Store) Matches() *MatchRepo {
	return &MatchRepo{store: s}
}

func (s *Store) Reconcile() *ReconcileRepo {
	return &ReconcileRepo{store: s}
}

// SetUnavailable makes every following call fail with repoerr.ErrUnavailable.
func (s *Store) SetUnavailable(v bool) {
	s.mu.Lock()
	s.unavailable = v
	s.mu.Unlock()
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SeedLike stores the like as given, replacing any like for the same direction.
func (s *Store) SeedLike(like model.Like) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if like.ID == "" {
		like.ID = rules.NewLikeID()
	}
	s.likes[directedKey{from: like.FromProfile, to: like.ToProfile}] = like
}

// SeedMatch stores the match without canonicalizing or checking uniqueness.
func (s *Store) SeedMatch(match model.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if match.ID == "" {
		match.ID = rules.NewMatchID()
	}
	s.matches[match.ID] = match
}

func (s *Store) AddMessage(id, matchID string) {
	s.mu.Lock()
	s.messages[id] = matchID
	s.mu.Unlock()
}

func (s *Store) AddContract(id, matchID string) {
	s.mu.Lock()
	s.contracts[id] = matchID
	s.mu.Unlock()
}

func (s *Store) AddDispute(id, contractID string) {
	s.mu.Lock()
	s.disputes[id] = contractID
	s.mu.Unlock()
}

func (s *Store) AddReview(id, matchID string) {
	s.mu.Lock()
	s.reviews[id] = matchID
	s.mu.Unlock()
}

// Dependents reports how many dependent rows point at matchID.
func (s *Store) Dependents(matchID string) model.OrphanCounts {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts model.OrphanCounts
	for _, owner := range s.messages {
		if owner == matchID {
			counts.Messages++
		}
	}
	for contractID, owner := range s.contracts {
		if owner != matchID {
			continue
		}
		counts.Contracts++
		for _, c := range s.disputes {
			if c == contractID {
				counts.Disputes++
			}
		}
	}
	for _, owner := range s.reviews {
		if owner == matchID {
			counts.Reviews++
		}
	}
	return counts
}

func (s *Store) check(op string) error {
	if s.unavailable {
		return fmt.Errorf("%s: %w", op, repoerr.ErrUnavailable)
	}
	return nil
}

// findMatchLocked returns the earliest match stored for the unordered pair.
func (s *Store) findMatchLocked(x, y string) (model.Match, bool) {
	a, b := rules.CanonicalPair(x, y)
	var (
		best  model.Match
		found bool
	)
	for _, m := range s.matches {
		lo, hi := rules.CanonicalPair(m.A, m.B)
		if lo != a || hi != b {
			continue
		}
		if !found || earlier(m, best) {
			best = m
			found = true
		}
	}
	return best, found
}

func (s *Store) cascadeLocked(matchID string) bool {
	if _, ok := s.matches[matchID]; !ok {
		return false
	}
	for contractID, owner := range s.contracts {
		if owner != matchID {
			continue
		}
		for disputeID, c := range s.disputes {
			if c == contractID {
				delete(s.disputes, disputeID)
			}
		}
		delete(s.contracts, contractID)
	}
	for id, owner := range s.messages {
		if owner == matchID {
			delete(s.messages, id)
		}
	}
	for id, owner := range s.reviews {
		if owner == matchID {
			delete(s.reviews, id)
		}
	}
	delete(s.matches, matchID)
	return true
}

func earlier(a, b model.Match) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortLikesNewestFirst(items []model.Like) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

// Transactor runs fn directly. Individual store calls are already atomic.
type Transactor struct{}

func (Transactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("transaction func is nil")
	}
	return fn(ctx)
}
