package likes

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var ErrValidation = errors.New("validation error")

type LikeStore interface {
	ListTo(ctx context.Context, profileID string, limit int) ([]model.Like, error)
	ListFrom(ctx context.Context, profileID string, limit int) ([]model.Like, error)
	Delete(ctx context.Context, fromProfile, toProfile string) (bool, error)
}

type Service struct {
	likes LikeStore
}

type Dependencies struct {
	LikeStore LikeStore
}

func NewService(deps Dependencies) *Service {
	return &Service{likes: deps.LikeStore}
}

// ListTo returns likes received by profileID, newest first.
func (s *Service) ListTo(ctx context.Context, profileID string, limit int) ([]model.Like, error) {
	profileID, limit, err := normalizeListArgs(profileID, limit)
	if err != nil {
		return nil, err
	}

	items, err := s.likes.ListTo(ctx, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incoming likes: %w", err)
	}
	return items, nil
}

// ListFrom returns likes sent by profileID, newest first.
func (s *Service) ListFrom(ctx context.Context, profileID string, limit int) ([]model.Like, error) {
	profileID, limit, err := normalizeListArgs(profileID, limit)
	if err != nil {
		return nil, err
	}

	items, err := s.likes.ListFrom(ctx, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list outgoing likes: %w", err)
	}
	return items, nil
}

// Retract removes the owner's like. Retracting a missing like is not an error.
func (s *Service) Retract(ctx context.Context, fromProfile, toProfile string) (bool, error) {
	fromProfile = rules.NormalizeProfileID(fromProfile)
	toProfile = rules.NormalizeProfileID(toProfile)
	if !rules.ValidProfileID(fromProfile) || !rules.ValidProfileID(toProfile) {
		return false, ErrValidation
	}

	deleted, err := s.likes.Delete(ctx, fromProfile, toProfile)
	if err != nil {
		return false, fmt.Errorf("retract like: %w", err)
	}
	return deleted, nil
}

func normalizeListArgs(profileID string, limit int) (string, int, error) {
	profileID = rules.NormalizeProfileID(profileID)
	if !rules.ValidProfileID(profileID) {
		return "", 0, ErrValidation
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return profileID, limit, nil
}
