package matching

import (
	"context"
	"errors"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

var (
	ErrValidation = errors.New("validation error")
	ErrSelfMatch  = errors.New("cannot match a profile with itself")
)

type LikeStore interface {
	InsertIfAbsent(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error)
	Find(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error)
	DeleteBothDirections(ctx context.Context, x, y string) (int64, error)
}

type MatchStore interface {
	InsertIfAbsent(ctx context.Context, x, y string) (model.Match, bool, error)
	FindByPair(ctx context.Context, x, y string) (model.Match, bool, error)
}

// Transactor makes the store calls issued by fn commit or roll back together.
type Transactor interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// PairLocker runs fn while holding an exclusive lock on one unordered profile pair.
type PairLocker interface {
	WithPairLock(ctx context.Context, key string, fn func(context.Context) error) error
}

type Result struct {
	Outcome enums.SwipeOutcome
	Match   *model.Match
	Like    *model.Like
}

type Service struct {
	likes   LikeStore
	matches MatchStore
	tx      Transactor
	locker  PairLocker
}

// Dependencies wires the stores. A nil Locker selects the optimistic strategy,
// which relies on the stores' uniqueness guarantees and re-checks after writing.
type Dependencies struct {
	Likes   LikeStore
	Matches MatchStore
	Tx      Transactor
	Locker  PairLocker
}

func NewService(deps Dependencies) *Service {
	tx := deps.Tx
	if tx == nil {
		tx = passthroughTx{}
	}

	return &Service{
		likes:   deps.Likes,
		matches: deps.Matches,
		tx:      tx,
		locker:  deps.Locker,
	}
}

// Swipe records that requester likes target and forms a match when the like is mutual.
// Any interleaving of calls for one pair leaves exactly one match and no likes
// once both sides have swiped.
func (s *Service) Swipe(ctx context.Context, requesterID, targetID string) (Result, error) {
	requesterID, targetID, err := CheckPair(requesterID, targetID)
	if err != nil {
		return Result{}, err
	}

	if s.locker == nil {
		return s.decide(ctx, requesterID, targetID, true)
	}

	var result Result
	err = s.locker.WithPairLock(ctx, rules.PairKey(requesterID, targetID), func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			result, err = s.decide(ctx, requesterID, targetID, false)
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

// CheckPair normalizes a swipe's profile ids and rejects invalid or identical ones.
func CheckPair(requesterID, targetID string) (string, string, error) {
	requesterID = rules.NormalizeProfileID(requesterID)
	targetID = rules.NormalizeProfileID(targetID)
	if !rules.ValidProfileID(requesterID) || !rules.ValidProfileID(targetID) {
		return "", "", ErrValidation
	}
	if requesterID == targetID {
		return "", "", ErrSelfMatch
	}
	return requesterID, targetID, nil
}

func (s *Service) decide(ctx context.Context, requesterID, targetID string, recheck bool) (Result, error) {
	match, matched, err := s.matches.FindByPair(ctx, requesterID, targetID)
	if err != nil {
		return Result{}, err
	}
	if matched {
		return alreadyMatched(match), nil
	}

	own, liked, err := s.likes.Find(ctx, requesterID, targetID)
	if err != nil {
		return Result{}, err
	}

	_, reverse, err := s.likes.Find(ctx, targetID, requesterID)
	if err != nil {
		return Result{}, err
	}
	if reverse {
		return s.promote(ctx, requesterID, targetID)
	}
	if liked {
		return alreadyLiked(own), nil
	}

	like, created, err := s.likes.InsertIfAbsent(ctx, requesterID, targetID)
	if err != nil {
		return Result{}, err
	}

	if recheck {
		match, matched, err := s.matches.FindByPair(ctx, requesterID, targetID)
		if err != nil {
			return Result{}, err
		}
		if matched {
			if _, err := s.likes.DeleteBothDirections(ctx, requesterID, targetID); err != nil {
				return Result{}, err
			}
			return alreadyMatched(match), nil
		}

		_, reverse, err := s.likes.Find(ctx, targetID, requesterID)
		if err != nil {
			return Result{}, err
		}
		if reverse {
			return s.promote(ctx, requesterID, targetID)
		}
	}

	if !created {
		return alreadyLiked(like), nil
	}
	return Result{Outcome: enums.SwipeOutcomeLikeRecorded, Like: &like}, nil
}

func (s *Service) promote(ctx context.Context, requesterID, targetID string) (Result, error) {
	match, created, err := s.matches.InsertIfAbsent(ctx, requesterID, targetID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.likes.DeleteBothDirections(ctx, requesterID, targetID); err != nil {
		return Result{}, err
	}

	if !created {
		return alreadyMatched(match), nil
	}
	return Result{Outcome: enums.SwipeOutcomeMatchCreated, Match: &match}, nil
}

func alreadyMatched(match model.Match) Result {
	return Result{Outcome: enums.SwipeOutcomeAlreadyMatched, Match: &match}
}

func alreadyLiked(like model.Like) Result {
	return Result{Outcome: enums.SwipeOutcomeAlreadyLiked, Like: &like}
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
