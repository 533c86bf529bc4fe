package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/services/matching"
)

var fixtureTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func seedInconsistentStore() *memory.Store {
	store := memory.NewStore()

	store.SeedMatch(model.Match{ID: "match_1", A: "p1", B: "p2", CreatedAt: fixtureTime})
	store.SeedMatch(model.Match{ID: "match_2", A: "p2", B: "p1", CreatedAt: fixtureTime.Add(time.Hour)})
	store.SeedMatch(model.Match{ID: "match_3", A: "p1", B: "p2", CreatedAt: fixtureTime.Add(2 * time.Hour)})
	store.AddContract("ctr_1", "match_2")
	store.AddDispute("dsp_1", "ctr_1")

	store.SeedLike(model.Like{ID: "like_1", FromProfile: "p1", ToProfile: "p2", CreatedAt: fixtureTime})
	store.SeedLike(model.Like{ID: "like_2", FromProfile: "p3", ToProfile: "p4", CreatedAt: fixtureTime})
	store.SeedLike(model.Like{ID: "like_3", FromProfile: "p4", ToProfile: "p3", CreatedAt: fixtureTime})

	store.AddMessage("msg_orphan", "match_gone")
	store.AddReview("rev_orphan", "match_gone")

	return store
}

func newTestService(store *memory.Store, archiver Archiver) *Service {
	svc := NewService(Dependencies{
		Store:    store.Reconcile(),
		Likes:    store.Likes(),
		Matches:  store.Matches(),
		Tx:       memory.Transactor{},
		Locker:   matching.NewLocalLocker(),
		Archiver: archiver,
	})
	svc.now = func() time.Time { return fixtureTime }
	return svc
}

func TestDryRunReportsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := seedInconsistentStore()
	svc := newTestService(store, nil)

	report, err := svc.Run(ctx, Options{})
	require.NoError(t, err)
	require.False(t, report.Applied)
	require.Equal(t, 2, report.Summary.DuplicateMatches)
	require.Equal(t, 1, report.Summary.StrandedPairs)
	require.Equal(t, 1, report.Summary.ShadowedLikes)
	require.Equal(t, 2, report.Summary.OrphanDependents)
	require.Equal(t, 6, report.Summary.Findings)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dry_run_report", []byte(report.Render()))

	again, err := svc.Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, report.Summary, again.Summary)

	matches, err := store.Matches().List(ctx, model.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 3)
}

func TestApplyRepairsAndSecondRunIsClean(t *testing.T) {
	ctx := context.Background()
	store := seedInconsistentStore()
	svc := newTestService(store, nil)

	report, err := svc.Run(ctx, Options{Apply: true})
	require.NoError(t, err)
	require.True(t, report.Applied)
	require.Equal(t, 6, report.Summary.Findings)

	kept, found, err := store.Matches().GetByID(ctx, "match_1")
	require.NoError(t, err)
	require.True(t, found, "earliest match must be kept")
	require.Equal(t, "p1", kept.A)

	for _, id := range []string{"match_2", "match_3"} {
		_, found, err := store.Matches().GetByID(ctx, id)
		require.NoError(t, err)
		require.False(t, found, "duplicate %s must be removed", id)
	}
	require.Zero(t, store.Dependents("match_2").Total())

	promoted, found, err := store.Matches().FindByPair(ctx, "p4", "p3")
	require.NoError(t, err)
	require.True(t, found, "stranded mutual likes must become a match")
	require.Equal(t, "p3", promoted.A)

	for _, dir := range [][2]string{{"p1", "p2"}, {"p3", "p4"}, {"p4", "p3"}} {
		_, found, err := store.Likes().Find(ctx, dir[0], dir[1])
		require.NoError(t, err)
		require.False(t, found, "like %s -> %s must be gone", dir[0], dir[1])
	}

	second, err := svc.Run(ctx, Options{Apply: true})
	require.NoError(t, err)
	require.Zero(t, second.Summary.Findings)
}

func TestBackfillSkipsShadowedLikeCleanup(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedMatch(model.Match{ID: "match_1", A: "p1", B: "p2", CreatedAt: fixtureTime})
	store.SeedLike(model.Like{ID: "like_1", FromProfile: "p1", ToProfile: "p2", CreatedAt: fixtureTime})
	svc := newTestService(store, nil)

	report, err := svc.Run(ctx, Options{Apply: true, BackfillLikes: true})
	require.NoError(t, err)
	require.Empty(t, report.ShadowedLikes)
	require.Len(t, report.MissingLikes, 1)
	require.Equal(t, "p2", report.MissingLikes[0].FromProfile)
	require.Zero(t, report.Summary.BackfillFailed)

	for _, dir := range [][2]string{{"p1", "p2"}, {"p2", "p1"}} {
		_, found, err := store.Likes().Find(ctx, dir[0], dir[1])
		require.NoError(t, err)
		require.True(t, found)
	}

	rerun, err := svc.Run(ctx, Options{BackfillLikes: true})
	require.NoError(t, err)
	require.Zero(t, rerun.Summary.Findings)

	withoutBackfill, err := svc.Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, withoutBackfill.Summary.ShadowedLikes)
}

func TestArchiveRunsBeforeDeletion(t *testing.T) {
	ctx := context.Background()
	store := seedInconsistentStore()
	archiver := &snapshotArchiver{store: store}
	svc := newTestService(store, archiver)

	report, err := svc.Run(ctx, Options{Apply: true, Archive: true})
	require.NoError(t, err)
	require.Equal(t, "reconcile/test.json", report.ArchiveKey)
	require.Equal(t, 1, archiver.calls)
	require.Equal(t, 3, archiver.matchesAtArchive)
	require.Equal(t, 6, archiver.report.Summary.Findings)
}

func TestArchiveFailureStopsBeforeDeletion(t *testing.T) {
	ctx := context.Background()
	store := seedInconsistentStore()
	svc := newTestService(store, &snapshotArchiver{store: store, err: errors.New("s3 down")})

	_, err := svc.Run(ctx, Options{Apply: true, Archive: true})
	require.Error(t, err)

	matches, err := store.Matches().List(ctx, model.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 3)
}

func TestArchiveSkippedWhenNothingFound(t *testing.T) {
	archiver := &snapshotArchiver{store: memory.NewStore()}
	svc := newTestService(archiver.store, archiver)

	report, err := svc.Run(context.Background(), Options{Apply: true, Archive: true})
	require.NoError(t, err)
	require.Empty(t, report.ArchiveKey)
	require.Zero(t, archiver.calls)
}

func TestRunRequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{}).Run(context.Background(), Options{})
	require.ErrorIs(t, err, ErrDependenciesNil)
}

type snapshotArchiver struct {
	store *memory.Store
	err   error

	calls            int
	matchesAtArchive int
	report           Report
}

func (a *snapshotArchiver) Archive(ctx context.Context, report Report) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	matches, err := a.store.Matches().List(ctx, model.MatchFilter{})
	if err != nil {
		return "", err
	}
	a.matchesAtArchive = len(matches)
	a.report = report
	return "reconcile/test.json", nil
}

// racingStore runs a hook right after a finder returns, standing in for a
// user request that lands between the scan and the repairs.
type racingStore struct {
	Store
	afterStranded func()
	afterShadowed func()
	afterMissing  func()
}

func (s *racingStore) FindStrandedMutualLikes(ctx context.Context) ([]model.ProfilePair, error) {
	pairs, err := s.Store.FindStrandedMutualLikes(ctx)
	if s.afterStranded != nil {
		s.afterStranded()
	}
	return pairs, err
}

func (s *racingStore) FindLikesShadowedByMatches(ctx context.Context) ([]model.Like, error) {
	likes, err := s.Store.FindLikesShadowedByMatches(ctx)
	if s.afterShadowed != nil {
		s.afterShadowed()
	}
	return likes, err
}

func (s *racingStore) FindMissingMatchLikes(ctx context.Context) ([]model.Like, error) {
	likes, err := s.Store.FindMissingMatchLikes(ctx)
	if s.afterMissing != nil {
		s.afterMissing()
	}
	return likes, err
}

func newRacingService(store *memory.Store, racing *racingStore) *Service {
	racing.Store = store.Reconcile()
	svc := NewService(Dependencies{
		Store:   racing,
		Likes:   store.Likes(),
		Matches: store.Matches(),
		Tx:      memory.Transactor{},
		Locker:  matching.NewLocalLocker(),
	})
	svc.now = func() time.Time { return fixtureTime }
	return svc
}

func TestApplySkipsStrandedPairRetractedAfterScan(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedLike(model.Like{ID: "like_1", FromProfile: "p3", ToProfile: "p4", CreatedAt: fixtureTime})
	store.SeedLike(model.Like{ID: "like_2", FromProfile: "p4", ToProfile: "p3", CreatedAt: fixtureTime})

	racing := &racingStore{}
	racing.afterStranded = func() {
		_, err := store.Likes().Delete(ctx, "p4", "p3")
		require.NoError(t, err)
	}
	svc := newRacingService(store, racing)

	report, err := svc.Run(ctx, Options{Apply: true})
	require.NoError(t, err)
	require.Len(t, report.StrandedPairs, 1)
	require.Equal(t, 1, report.Summary.Skipped)

	_, matched, err := store.Matches().FindByPair(ctx, "p3", "p4")
	require.NoError(t, err)
	require.False(t, matched, "retracted like must not be promoted")

	_, found, err := store.Likes().Find(ctx, "p3", "p4")
	require.NoError(t, err)
	require.True(t, found, "remaining one-sided like must be kept")
}

func TestApplyKeepsLikeWhenShadowingMatchWasRemoved(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedMatch(model.Match{ID: "match_1", A: "p1", B: "p2", CreatedAt: fixtureTime})
	store.SeedLike(model.Like{ID: "like_1", FromProfile: "p1", ToProfile: "p2", CreatedAt: fixtureTime})

	racing := &racingStore{}
	racing.afterShadowed = func() {
		deleted, err := store.Matches().DeleteByID(ctx, "match_1")
		require.NoError(t, err)
		require.True(t, deleted)
		_, _, err = store.Likes().InsertIfAbsent(ctx, "p1", "p2")
		require.NoError(t, err)
	}
	svc := newRacingService(store, racing)

	report, err := svc.Run(ctx, Options{Apply: true})
	require.NoError(t, err)
	require.Len(t, report.ShadowedLikes, 1)
	require.Equal(t, 1, report.Summary.Skipped)

	_, found, err := store.Likes().Find(ctx, "p1", "p2")
	require.NoError(t, err)
	require.True(t, found, "like sent after unmatch must survive")
}

func TestBackfillSkipsPairUnmatchedAfterScan(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedMatch(model.Match{ID: "match_1", A: "p1", B: "p2", CreatedAt: fixtureTime})

	racing := &racingStore{}
	racing.afterMissing = func() {
		_, err := store.Matches().DeleteByID(ctx, "match_1")
		require.NoError(t, err)
	}
	svc := newRacingService(store, racing)

	report, err := svc.Run(ctx, Options{Apply: true, BackfillLikes: true})
	require.NoError(t, err)
	require.Len(t, report.MissingLikes, 2)
	require.Equal(t, 2, report.Summary.Skipped)
	require.Zero(t, report.Summary.BackfillFailed)

	for _, dir := range [][2]string{{"p1", "p2"}, {"p2", "p1"}} {
		_, found, err := store.Likes().Find(ctx, dir[0], dir[1])
		require.NoError(t, err)
		require.False(t, found, "like %s -> %s must not be recreated", dir[0], dir[1])
	}
}
