// Package reconcile repairs like and match data left inconsistent by older
// writers or interrupted requests. A run is a dry run unless Options.Apply is set.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

var ErrDependenciesNil = errors.New("reconcile dependencies are not configured")

type Store interface {
	FindDuplicateMatches(ctx context.Context) ([]model.DuplicateMatchGroup, error)
	FindStrandedMutualLikes(ctx context.Context) ([]model.ProfilePair, error)
	FindLikesShadowedByMatches(ctx context.Context) ([]model.Like, error)
	FindMissingMatchLikes(ctx context.Context) ([]model.Like, error)
	CountOrphans(ctx context.Context) (model.OrphanCounts, error)
	DeleteOrphans(ctx context.Context) (model.OrphanCounts, error)
}

type LikeStore interface {
	InsertIfAbsent(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error)
	Find(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error)
	Delete(ctx context.Context, fromProfile, toProfile string) (bool, error)
	DeleteBothDirections(ctx context.Context, x, y string) (int64, error)
}

type MatchStore interface {
	InsertIfAbsent(ctx context.Context, x, y string) (model.Match, bool, error)
	FindByPair(ctx context.Context, x, y string) (model.Match, bool, error)
	DeleteByID(ctx context.Context, matchID string) (bool, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

type PairLocker interface {
	WithPairLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Archiver stores a copy of the findings before anything is deleted and
// returns the object key.
type Archiver interface {
	Archive(ctx context.Context, report Report) (string, error)
}

type Options struct {
	Apply         bool
	BackfillLikes bool
	Archive       bool
}

type Dependencies struct {
	Store    Store
	Likes    LikeStore
	Matches  MatchStore
	Tx       Transactor
	Locker   PairLocker
	Archiver Archiver
	Logger   *zap.Logger
}

type Service struct {
	store    Store
	likes    LikeStore
	matches  MatchStore
	tx       Transactor
	locker   PairLocker
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:    deps.Store,
		likes:    deps.Likes,
		matches:  deps.Matches,
		tx:       deps.Tx,
		locker:   deps.Locker,
		archiver: deps.Archiver,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	if s.store == nil || s.likes == nil || s.matches == nil || s.tx == nil {
		return Report{}, ErrDependenciesNil
	}

	report, err := s.collect(ctx, opts)
	if err != nil {
		return Report{}, err
	}

	if opts.Archive && s.archiver != nil && report.Summary.Findings > 0 {
		key, err := s.archiver.Archive(ctx, report)
		if err != nil {
			return report, fmt.Errorf("archive findings: %w", err)
		}
		report.ArchiveKey = key
	}

	if !opts.Apply {
		s.logger.Info("reconcile dry run finished", zap.Int("findings", report.Summary.Findings))
		return report, nil
	}

	if err := s.apply(ctx, &report); err != nil {
		s.logger.Error("reconcile apply failed", zap.Error(err))
		return report, err
	}

	report.Applied = true
	s.logger.Info("reconcile applied",
		zap.Int("findings", report.Summary.Findings),
		zap.Int("backfill_failed", report.Summary.BackfillFailed),
		zap.String("archive_key", report.ArchiveKey),
	)
	return report, nil
}

func (s *Service) collect(ctx context.Context, opts Options) (Report, error) {
	report := Report{
		StartedAt:     s.now().UTC(),
		BackfillLikes: opts.BackfillLikes,
	}

	var err error
	if report.DuplicateMatches, err = s.store.FindDuplicateMatches(ctx); err != nil {
		return Report{}, fmt.Errorf("find duplicate matches: %w", err)
	}
	if report.StrandedPairs, err = s.store.FindStrandedMutualLikes(ctx); err != nil {
		return Report{}, fmt.Errorf("find stranded likes: %w", err)
	}
	if !opts.BackfillLikes {
		if report.ShadowedLikes, err = s.store.FindLikesShadowedByMatches(ctx); err != nil {
			return Report{}, fmt.Errorf("find shadowed likes: %w", err)
		}
	}
	if report.Orphans, err = s.store.CountOrphans(ctx); err != nil {
		return Report{}, fmt.Errorf("count orphans: %w", err)
	}
	if opts.BackfillLikes {
		if report.MissingLikes, err = s.store.FindMissingMatchLikes(ctx); err != nil {
			return Report{}, fmt.Errorf("find missing match likes: %w", err)
		}
	}

	report.summarize()
	return report, nil
}

// apply runs every repair as its own transaction, so an interrupted run can be
// repeated without double-applying anything.
func (s *Service) apply(ctx context.Context, report *Report) error {
	for _, group := range report.DuplicateMatches {
		for _, extra := range group.Extra {
			if _, err := s.matches.DeleteByID(ctx, extra.ID); err != nil {
				return fmt.Errorf("delete duplicate match %s: %w", extra.ID, err)
			}
			s.logger.Info("duplicate match removed",
				zap.String("match_id", extra.ID),
				zap.String("kept_match_id", group.Keep.ID),
			)
		}
	}

	for _, pair := range report.StrandedPairs {
		done, err := s.promote(ctx, pair)
		if err != nil {
			return fmt.Errorf("promote stranded pair %s/%s: %w", pair.A, pair.B, err)
		}
		if !done {
			report.Summary.Skipped++
			s.logger.Info("stranded pair changed since scan, skipped",
				zap.String("a", pair.A),
				zap.String("b", pair.B),
			)
		}
	}

	for _, like := range report.ShadowedLikes {
		done, err := s.dropShadowedLike(ctx, like)
		if err != nil {
			return fmt.Errorf("delete shadowed like %s: %w", like.ID, err)
		}
		if !done {
			report.Summary.Skipped++
			s.logger.Info("shadowing match gone since scan, like kept",
				zap.String("like_id", like.ID),
				zap.String("from_profile", like.FromProfile),
				zap.String("to_profile", like.ToProfile),
			)
		}
	}

	if report.Orphans.Total() > 0 {
		removed, err := s.store.DeleteOrphans(ctx)
		if err != nil {
			return fmt.Errorf("delete orphans: %w", err)
		}
		report.Orphans = removed
	}

	for _, like := range report.MissingLikes {
		done, err := s.backfillLike(ctx, like)
		if err != nil {
			report.Summary.BackfillFailed++
			s.logger.Warn("backfill like failed",
				zap.String("from_profile", like.FromProfile),
				zap.String("to_profile", like.ToProfile),
				zap.Error(err),
			)
			continue
		}
		if !done {
			report.Summary.Skipped++
			s.logger.Info("match gone since scan, like not backfilled",
				zap.String("from_profile", like.FromProfile),
				zap.String("to_profile", like.ToProfile),
			)
		}
	}

	return nil
}

// promote turns a stranded mutual like into a match. Both likes are re-read
// under the pair lock; if either was retracted since the scan nothing is written
// and done is false.
func (s *Service) promote(ctx context.Context, pair model.ProfilePair) (bool, error) {
	var done bool
	err := s.withPair(ctx, pair.A, pair.B, func(ctx context.Context) error {
		for _, dir := range [2][2]string{{pair.A, pair.B}, {pair.B, pair.A}} {
			_, found, err := s.likes.Find(ctx, dir[0], dir[1])
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
		}

		if _, _, err := s.matches.InsertIfAbsent(ctx, pair.A, pair.B); err != nil {
			return err
		}
		if _, err := s.likes.DeleteBothDirections(ctx, pair.A, pair.B); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

// dropShadowedLike deletes a like only while a match for its pair still exists.
func (s *Service) dropShadowedLike(ctx context.Context, like model.Like) (bool, error) {
	var done bool
	err := s.withPair(ctx, like.FromProfile, like.ToProfile, func(ctx context.Context) error {
		_, matched, err := s.matches.FindByPair(ctx, like.FromProfile, like.ToProfile)
		if err != nil || !matched {
			return err
		}
		done, err = s.likes.Delete(ctx, like.FromProfile, like.ToProfile)
		return err
	})
	return done, err
}

// backfillLike recreates a like only while the match it belongs to still exists.
func (s *Service) backfillLike(ctx context.Context, like model.Like) (bool, error) {
	var done bool
	err := s.withPair(ctx, like.FromProfile, like.ToProfile, func(ctx context.Context) error {
		_, matched, err := s.matches.FindByPair(ctx, like.FromProfile, like.ToProfile)
		if err != nil || !matched {
			return err
		}
		if _, _, err := s.likes.InsertIfAbsent(ctx, like.FromProfile, like.ToProfile); err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

// withPair runs fn in one transaction while holding the pair lock, when a
// locker is configured.
func (s *Service) withPair(ctx context.Context, x, y string, fn func(context.Context) error) error {
	inTx := func(ctx context.Context) error {
		return s.tx.InTx(ctx, fn)
	}
	if s.locker == nil {
		return inTx(ctx)
	}
	return s.locker.WithPairLock(ctx, rules.PairKey(x, y), inTx)
}
