package matches

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("match not found")
)

type MatchStore interface {
	GetByID(ctx context.Context, matchID string) (model.Match, bool, error)
	List(ctx context.Context, filter model.MatchFilter) ([]model.Match, error)
	DeleteByID(ctx context.Context, matchID string) (bool, error)
}

type Service struct {
	matchStore MatchStore
}

type Dependencies struct {
	MatchStore MatchStore
}

func NewService(deps Dependencies) *Service {
	return &Service{matchStore: deps.MatchStore}
}

func (s *Service) List(ctx context.Context, profileID string, limit int) ([]model.Match, error) {
	profileID = rules.NormalizeProfileID(profileID)
	if profileID != "" && !rules.ValidProfileID(profileID) {
		return nil, ErrValidation
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, err := s.matchStore.List(ctx, model.MatchFilter{
		ProfileID: profileID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, matchID string) (model.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return model.Match{}, ErrValidation
	}

	match, found, err := s.matchStore.GetByID(ctx, matchID)
	if err != nil {
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !found {
		return model.Match{}, ErrNotFound
	}
	return match, nil
}

// Unmatch deletes the match with its messages, contracts, disputes and reviews.
// Deleting a missing match reports deleted=false.
func (s *Service) Unmatch(ctx context.Context, matchID string) (bool, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return false, ErrValidation
	}

	deleted, err := s.matchStore.DeleteByID(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("unmatch: %w", err)
	}
	return deleted, nil
}
