package postgres_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	pgrepo "github.com/ivankudzin/matchcore/internal/repo/postgres"
	"github.com/ivankudzin/matchcore/internal/services/matching"
	"github.com/ivankudzin/matchcore/internal/services/reconcile"
)

// testDSNEnv names the database these tests run against. They are skipped
// when it is unset.
const testDSNEnv = "MATCHCORE_TEST_POSTGRES_DSN"

// newTestPool connects to a fresh schema with the tables migrated. The schema
// is dropped when the test ends.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgrepo.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	schema := "matchcore_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 16

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pgrepo.Migrate(ctx, pool))
	return pool
}

func newMatchingService(pool *pgxpool.Pool, mode enums.LockMode) *matching.Service {
	deps := matching.Dependencies{
		Likes:   pgrepo.NewLikeRepo(pool),
		Matches: pgrepo.NewMatchRepo(pool),
		Tx:      pgrepo.NewTransactor(pool),
	}
	switch mode {
	case enums.LockModeAdvisory:
		deps.Locker = pgrepo.NewPairLocker(pool)
	case enums.LockModeLocal:
		deps.Locker = matching.NewLocalLocker()
	}
	return matching.NewService(deps)
}

func countLikes(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM likes`).Scan(&n))
	return n
}

func TestConcurrentReverseSwipesFormOneMatch(t *testing.T) {
	modes := []enums.LockMode{enums.LockModeAdvisory, enums.LockModeLocal, enums.LockModeOptimistic}

	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			pool := newTestPool(t)
			ctx := context.Background()
			svc := newMatchingService(pool, mode)

			first, err := svc.Swipe(ctx, "profile_a", "profile_b")
			require.NoError(t, err)
			require.Equal(t, enums.SwipeOutcomeLikeRecorded, first.Outcome)

			const concurrent = 12
			matchIDs := make([]string, concurrent)
			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < concurrent; i++ {
				g.Go(func() error {
					result, err := svc.Swipe(gctx, "profile_b", "profile_a")
					if err != nil {
						return err
					}
					if result.Match != nil {
						matchIDs[i] = result.Match.ID
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			matches, err := pgrepo.NewMatchRepo(pool).List(ctx, model.MatchFilter{Limit: 10})
			require.NoError(t, err)
			require.Len(t, matches, 1)
			require.Equal(t, "profile_a", matches[0].A)
			require.Equal(t, "profile_b", matches[0].B)

			for i, id := range matchIDs {
				require.Equal(t, matches[0].ID, id, "swipe %d saw a different match", i)
			}
			require.Zero(t, countLikes(t, pool))
		})
	}
}

func TestConcurrentSwipesInBothDirectionsConverge(t *testing.T) {
	for _, mode := range []enums.LockMode{enums.LockModeAdvisory, enums.LockModeOptimistic} {
		t.Run(string(mode), func(t *testing.T) {
			pool := newTestPool(t)
			ctx := context.Background()
			svc := newMatchingService(pool, mode)

			g, gctx := errgroup.WithContext(ctx)
			for i := 0; i < 12; i++ {
				from, to := "profile_a", "profile_b"
				if i%2 == 1 {
					from, to = to, from
				}
				g.Go(func() error {
					_, err := svc.Swipe(gctx, from, to)
					return err
				})
			}
			require.NoError(t, g.Wait())

			matches, err := pgrepo.NewMatchRepo(pool).List(ctx, model.MatchFilter{Limit: 10})
			require.NoError(t, err)
			require.Len(t, matches, 1)
			require.Zero(t, countLikes(t, pool))
		})
	}
}

func TestInsertIfAbsentReturnsExistingRow(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	likes := pgrepo.NewLikeRepo(pool)
	matches := pgrepo.NewMatchRepo(pool)

	like, created, err := likes.InsertIfAbsent(ctx, "p1", "p2")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := likes.InsertIfAbsent(ctx, "p1", "p2")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, like.ID, again.ID)

	match, created, err := matches.InsertIfAbsent(ctx, "p2", "p1")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "p1", match.A)
	require.Equal(t, "p2", match.B)

	same, created, err := matches.InsertIfAbsent(ctx, "p1", "p2")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, match.ID, same.ID)
}

func TestDeleteByIDCascades(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	matches := pgrepo.NewMatchRepo(pool)

	doomed, _, err := matches.InsertIfAbsent(ctx, "p1", "p2")
	require.NoError(t, err)
	other, _, err := matches.InsertIfAbsent(ctx, "p3", "p4")
	require.NoError(t, err)

	for _, id := range []string{doomed.ID, other.ID} {
		_, err := pool.Exec(ctx, `INSERT INTO messages (id, match_id) VALUES ($1, $2)`, "msg_"+id, id)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `INSERT INTO contracts (id, match_id) VALUES ($1, $2)`, "ctr_"+id, id)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `INSERT INTO disputes (id, contract_id) VALUES ($1, $2)`, "dsp_"+id, "ctr_"+id)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `INSERT INTO reviews (id, match_id) VALUES ($1, $2)`, "rev_"+id, id)
		require.NoError(t, err)
	}

	deleted, err := matches.DeleteByID(ctx, doomed.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	var left int
	require.NoError(t, pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM messages WHERE match_id = $1) +
	(SELECT COUNT(*) FROM contracts WHERE match_id = $1) +
	(SELECT COUNT(*) FROM disputes WHERE contract_id = 'ctr_' || $1) +
	(SELECT COUNT(*) FROM reviews WHERE match_id = $1)
`, doomed.ID).Scan(&left))
	require.Zero(t, left, "dependents of the deleted match must be gone")

	var kept int
	require.NoError(t, pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM messages WHERE match_id = $1) +
	(SELECT COUNT(*) FROM contracts WHERE match_id = $1) +
	(SELECT COUNT(*) FROM disputes WHERE contract_id = 'ctr_' || $1) +
	(SELECT COUNT(*) FROM reviews WHERE match_id = $1)
`, other.ID).Scan(&kept))
	require.Equal(t, 4, kept, "other match's dependents must stay")

	deleted, err = matches.DeleteByID(ctx, doomed.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestReconcileFindsAndRepairs(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	likes := pgrepo.NewLikeRepo(pool)
	matches := pgrepo.NewMatchRepo(pool)
	store := pgrepo.NewReconcileRepo(pool)

	for _, dir := range [][2]string{{"p3", "p4"}, {"p4", "p3"}, {"p1", "p2"}} {
		_, _, err := likes.InsertIfAbsent(ctx, dir[0], dir[1])
		require.NoError(t, err)
	}
	for _, pair := range [][2]string{{"p1", "p2"}, {"p5", "p6"}} {
		_, _, err := matches.InsertIfAbsent(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}
	_, err := pool.Exec(ctx, `INSERT INTO messages (id, match_id) VALUES ('msg_orphan', 'match_gone')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO disputes (id, contract_id) VALUES ('dsp_orphan', 'ctr_gone')`)
	require.NoError(t, err)

	duplicates, err := store.FindDuplicateMatches(ctx)
	require.NoError(t, err)
	require.Empty(t, duplicates)

	stranded, err := store.FindStrandedMutualLikes(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.ProfilePair{{A: "p3", B: "p4"}}, stranded)

	shadowed, err := store.FindLikesShadowedByMatches(ctx)
	require.NoError(t, err)
	require.Len(t, shadowed, 1)
	require.Equal(t, "p1", shadowed[0].FromProfile)

	missing, err := store.FindMissingMatchLikes(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 3)

	orphans, err := store.CountOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, model.OrphanCounts{Messages: 1, Disputes: 1}, orphans)

	svc := reconcile.NewService(reconcile.Dependencies{
		Store:   store,
		Likes:   likes,
		Matches: matches,
		Tx:      pgrepo.NewTransactor(pool),
		Locker:  pgrepo.NewPairLocker(pool),
	})

	report, err := svc.Run(ctx, reconcile.Options{Apply: true})
	require.NoError(t, err)
	require.True(t, report.Applied)
	require.Equal(t, model.OrphanCounts{Messages: 1, Disputes: 1}, report.Orphans)

	_, matched, err := matches.FindByPair(ctx, "p4", "p3")
	require.NoError(t, err)
	require.True(t, matched, "stranded mutual likes must become a match")
	require.Zero(t, countLikes(t, pool))

	second, err := svc.Run(ctx, reconcile.Options{})
	require.NoError(t, err)
	require.Zero(t, second.Summary.Findings)
}
