package memory

import (
	"context"
	"sort"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type ReconcileRepo struct {
	store *Store
}

func (r *ReconcileRepo) FindDuplicateMatches(_ context.Context) ([]model.DuplicateMatchGroup, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("find duplicate matches"); err != nil {
		return nil, err
	}

	byPair := make(map[model.ProfilePair][]model.Match)
	for _, m := range s.matches {
		a, b := rules.CanonicalPair(m.A, m.B)
		pair := model.ProfilePair{A: a, B: b}
		byPair[pair] = append(byPair[pair], m)
	}

	groups := make([]model.DuplicateMatchGroup, 0)
	for pair, rows := range byPair {
		if len(rows) < 2 {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return earlier(rows[i], rows[j]) })
		groups = append(groups, model.DuplicateMatchGroup{
			Pair:  pair,
			Keep:  rows[0],
			Extra: rows[1:],
		})
	}
	sort.Slice(groups, func(i, j int) bool { return pairLess(groups[i].Pair, groups[j].Pair) })
	return groups, nil
}

func (r *ReconcileRepo) FindStrandedMutualLikes(_ context.Context) ([]model.ProfilePair, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("find stranded likes"); err != nil {
		return nil, err
	}

	pairs := make([]model.ProfilePair, 0)
	for key := range s.likes {
		if key.from >= key.to {
			continue
		}
		if _, ok := s.likes[directedKey{from: key.to, to: key.from}]; !ok {
			continue
		}
		if _, matched := s.findMatchLocked(key.from, key.to); matched {
			continue
		}
		pairs = append(pairs, model.ProfilePair{A: key.from, B: key.to})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairLess(pairs[i], pairs[j]) })
	return pairs, nil
}

func (r *ReconcileRepo) FindLikesShadowedByMatches(_ context.Context) ([]model.Like, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("find shadowed likes"); err != nil {
		return nil, err
	}

	likes := make([]model.Like, 0)
	for _, like := range s.likes {
		if _, matched := s.findMatchLocked(like.FromProfile, like.ToProfile); matched {
			likes = append(likes, like)
		}
	}
	sortLikesByDirection(likes)
	return likes, nil
}

func (r *ReconcileRepo) FindMissingMatchLikes(_ context.Context) ([]model.Like, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("find missing match likes"); err != nil {
		return nil, err
	}

	seen := make(map[directedKey]struct{})
	likes := make([]model.Like, 0)
	for _, m := range s.matches {
		for _, key := range []directedKey{{from: m.A, to: m.B}, {from: m.B, to: m.A}} {
			if _, ok := s.likes[key]; ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			likes = append(likes, model.Like{
				FromProfile: key.from,
				ToProfile:   key.to,
				CreatedAt:   m.CreatedAt,
			})
		}
	}
	sortLikesByDirection(likes)
	return likes, nil
}

func (r *ReconcileRepo) CountOrphans(_ context.Context) (model.OrphanCounts, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("count orphans"); err != nil {
		return model.OrphanCounts{}, err
	}

	return s.sweepLocked(false), nil
}

func (r *ReconcileRepo) DeleteOrphans(_ context.Context) (model.OrphanCounts, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete orphans"); err != nil {
		return model.OrphanCounts{}, err
	}

	return s.sweepLocked(true), nil
}

func (s *Store) sweepLocked(apply bool) model.OrphanCounts {
	var counts model.OrphanCounts

	for id, contractID := range s.disputes {
		matchID, ok := s.contracts[contractID]
		if ok {
			_, ok = s.matches[matchID]
		}
		if ok {
			continue
		}
		counts.Disputes++
		if apply {
			delete(s.disputes, id)
		}
	}

	sweep := func(rows map[string]string, n *int) {
		for id, matchID := range rows {
			if _, ok := s.matches[matchID]; ok {
				continue
			}
			*n++
			if apply {
				delete(rows, id)
			}
		}
	}
	sweep(s.contracts, &counts.Contracts)
	sweep(s.messages, &counts.Messages)
	sweep(s.reviews, &counts.Reviews)

	return counts
}

func pairLess(a, b model.ProfilePair) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

func sortLikesByDirection(likes []model.Like) {
	sort.Slice(likes, func(i, j int) bool {
		if likes[i].FromProfile != likes[j].FromProfile {
			return likes[i].FromProfile < likes[j].FromProfile
		}
		return likes[i].ToProfile < likes[j].ToProfile
	})
}
