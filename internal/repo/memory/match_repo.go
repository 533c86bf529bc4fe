package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const defaultMatchesLimit = 100

type MatchRepo struct {
	store *Store
}

func (r *MatchRepo) InsertIfAbsent(_ context.Context, x, y string) (model.Match, bool, error) {
	if x == "" || y == "" || x == y {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create match"); err != nil {
		return model.Match{}, false, err
	}

	if existing, ok := s.findMatchLocked(x, y); ok {
		return existing, false, nil
	}

	a, b := rules.CanonicalPair(x, y)
	match := model.Match{
		ID:        rules.NewMatchID(),
		A:         a,
		B:         b,
		CreatedAt: s.now().UTC(),
	}
	s.matches[match.ID] = match
	return match, true, nil
}

func (r *MatchRepo) FindByPair(_ context.Context, x, y string) (model.Match, bool, error) {
	if x == "" || y == "" {
		return model.Match{}, false, fmt.Errorf("invalid match lookup payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("lookup match"); err != nil {
		return model.Match{}, false, err
	}

	match, ok := s.findMatchLocked(x, y)
	return match, ok, nil
}

func (r *MatchRepo) GetByID(_ context.Context, matchID string) (model.Match, bool, error) {
	if matchID == "" {
		return model.Match{}, false, fmt.Errorf("invalid match id")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get match"); err != nil {
		return model.Match{}, false, err
	}

	match, ok := s.matches[matchID]
	return match, ok, nil
}

func (r *MatchRepo) List(_ context.Context, filter model.MatchFilter) ([]model.Match, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMatchesLimit
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list matches"); err != nil {
		return nil, err
	}

	items := make([]model.Match, 0)
	for _, m := range s.matches {
		if filter.ProfileID == "" || m.HasProfile(filter.ProfileID) {
			items = append(items, m)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return earlier(items[j], items[i])
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MatchRepo) DeleteByID(_ context.Context, matchID string) (bool, error) {
	if matchID == "" {
		return false, fmt.Errorf("invalid match delete payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete match"); err != nil {
		return false, err
	}

	return s.cascadeLocked(matchID), nil
}
