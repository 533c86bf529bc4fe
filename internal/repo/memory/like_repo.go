package memory

import (
	"context"
	"fmt"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const defaultLikesLimit = 50

type LikeRepo struct {
	store *Store
}

func (r *LikeRepo) InsertIfAbsent(_ context.Context, fromProfile, toProfile string) (model.Like, bool, error) {
	if fromProfile == "" || toProfile == "" || fromProfile == toProfile {
		return model.Like{}, false, fmt.Errorf("invalid like payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("insert like"); err != nil {
		return model.Like{}, false, err
	}

	key := directedKey{from: fromProfile, to: toProfile}
	if existing, ok := s.likes[key]; ok {
		return existing, false, nil
	}

	like := model.Like{
		ID:          rules.NewLikeID(),
		FromProfile: fromProfile,
		ToProfile:   toProfile,
		CreatedAt:   s.now().UTC(),
	}
	s.likes[key] = like
	return like, true, nil
}

func (r *LikeRepo) Find(_ context.Context, fromProfile, toProfile string) (model.Like, bool, error) {
	if fromProfile == "" || toProfile == "" {
		return model.Like{}, false, fmt.Errorf("invalid like lookup payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("lookup like"); err != nil {
		return model.Like{}, false, err
	}

	like, ok := s.likes[directedKey{from: fromProfile, to: toProfile}]
	return like, ok, nil
}

func (r *LikeRepo) Delete(_ context.Context, fromProfile, toProfile string) (bool, error) {
	if fromProfile == "" || toProfile == "" {
		return false, fmt.Errorf("invalid like delete payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete like"); err != nil {
		return false, err
	}

	key := directedKey{from: fromProfile, to: toProfile}
	if _, ok := s.likes[key]; !ok {
		return false, nil
	}
	delete(s.likes, key)
	return true, nil
}

func (r *LikeRepo) DeleteBothDirections(_ context.Context, x, y string) (int64, error) {
	if x == "" || y == "" {
		return 0, fmt.Errorf("invalid like delete payload")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete pair likes"); err != nil {
		return 0, err
	}

	var n int64
	for _, key := range []directedKey{{from: x, to: y}, {from: y, to: x}} {
		if _, ok := s.likes[key]; ok {
			delete(s.likes, key)
			n++
		}
	}
	return n, nil
}

func (r *LikeRepo) ListTo(_ context.Context, profileID string, limit int) ([]model.Like, error) {
	return r.list(profileID, limit, func(l model.Like) bool { return l.ToProfile == profileID })
}

func (r *LikeRepo) ListFrom(_ context.Context, profileID string, limit int) ([]model.Like, error) {
	return r.list(profileID, limit, func(l model.Like) bool { return l.FromProfile == profileID })
}

func (r *LikeRepo) list(profileID string, limit int, keep func(model.Like) bool) ([]model.Like, error) {
	if profileID == "" {
		return nil, fmt.Errorf("invalid profile id")
	}
	if limit <= 0 {
		limit = defaultLikesLimit
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list likes"); err != nil {
		return nil, err
	}

	items := make([]model.Like, 0)
	for _, like := range s.likes {
		if keep(like) {
			items = append(items, like)
		}
	}
	sortLikesNewestFirst(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
