package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

// ReconcileRepo holds the read-side queries of the repair run and the orphan sweep.
type ReconcileRepo struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

func NewReconcileRepo(pool *pgxpool.Pool) *ReconcileRepo {
	return &ReconcileRepo{
		pool: pool,
		tx:   NewTransactor(pool),
	}
}

func (r *ReconcileRepo) FindDuplicateMatches(ctx context.Context) ([]model.DuplicateMatchGroup, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("find duplicate matches: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT id, a, b, created_at, lo, hi
FROM (
	SELECT
		id,
		a,
		b,
		created_at,
		LEAST(a, b) AS lo,
		GREATEST(a, b) AS hi,
		ROW_NUMBER() OVER (PARTITION BY LEAST(a, b), GREATEST(a, b) ORDER BY created_at ASC, id ASC) AS rn,
		COUNT(*) OVER (PARTITION BY LEAST(a, b), GREATEST(a, b)) AS group_size
	FROM matches
) ranked
WHERE group_size > 1
ORDER BY lo, hi, rn
`)
	if err != nil {
		return nil, classify(fmt.Errorf("find duplicate matches: %w", err))
	}
	defer rows.Close()

	groups := make([]model.DuplicateMatchGroup, 0)
	for rows.Next() {
		var (
			match  model.Match
			lo, hi string
		)
		if err := rows.Scan(&match.ID, &match.A, &match.B, &match.CreatedAt, &lo, &hi); err != nil {
			return nil, fmt.Errorf("scan duplicate match: %w", err)
		}

		n := len(groups)
		if n == 0 || groups[n-1].Pair.A != lo || groups[n-1].Pair.B != hi {
			groups = append(groups, model.DuplicateMatchGroup{
				Pair: model.ProfilePair{A: lo, B: hi},
				Keep: match,
			})
			continue
		}
		groups[n-1].Extra = append(groups[n-1].Extra, match)
	}

	if rows.Err() != nil {
		return nil, classify(fmt.Errorf("iterate duplicate matches: %w", rows.Err()))
	}

	return groups, nil
}

func (r *ReconcileRepo) FindStrandedMutualLikes(ctx context.Context) ([]model.ProfilePair, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("find stranded likes: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT l1.from_profile, l1.to_profile
FROM likes l1
JOIN likes l2
	ON l2.from_profile = l1.to_profile
	AND l2.to_profile = l1.from_profile
WHERE
	l1.from_profile < l1.to_profile
	AND NOT EXISTS (
		SELECT 1
		FROM matches m
		WHERE (m.a = l1.from_profile AND m.b = l1.to_profile)
			OR (m.a = l1.to_profile AND m.b = l1.from_profile)
	)
ORDER BY l1.from_profile, l1.to_profile
`)
	if err != nil {
		return nil, classify(fmt.Errorf("find stranded likes: %w", err))
	}
	defer rows.Close()

	pairs := make([]model.ProfilePair, 0)
	for rows.Next() {
		var pair model.ProfilePair
		if err := rows.Scan(&pair.A, &pair.B); err != nil {
			return nil, fmt.Errorf("scan stranded pair: %w", err)
		}
		pairs = append(pairs, pair)
	}

	if rows.Err() != nil {
		return nil, classify(fmt.Errorf("iterate stranded pairs: %w", rows.Err()))
	}

	return pairs, nil
}

func (r *ReconcileRepo) FindLikesShadowedByMatches(ctx context.Context) ([]model.Like, error) {
	return r.findLikes(ctx, "find shadowed likes", `
SELECT l.id, l.from_profile, l.to_profile, l.created_at
FROM likes l
WHERE EXISTS (
	SELECT 1
	FROM matches m
	WHERE (m.a = l.from_profile AND m.b = l.to_profile)
		OR (m.a = l.to_profile AND m.b = l.from_profile)
)
ORDER BY l.from_profile, l.to_profile
`)
}

// FindMissingMatchLikes lists the directional likes a matched pair lacks.
// Returned likes carry no id.
func (r *ReconcileRepo) FindMissingMatchLikes(ctx context.Context) ([]model.Like, error) {
	return r.findLikes(ctx, "find missing match likes", `
SELECT '', d.from_profile, d.to_profile, d.created_at
FROM (
	SELECT a AS from_profile, b AS to_profile, created_at FROM matches
	UNION
	SELECT b AS from_profile, a AS to_profile, created_at FROM matches
) d
WHERE NOT EXISTS (
	SELECT 1
	FROM likes l
	WHERE l.from_profile = d.from_profile AND l.to_profile = d.to_profile
)
ORDER BY d.from_profile, d.to_profile
`)
}

func (r *ReconcileRepo) findLikes(ctx context.Context, op, query string) ([]model.Like, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("%s: %w", op, err))
	}
	defer rows.Close()

	likes := make([]model.Like, 0)
	for rows.Next() {
		var like model.Like
		if err := rows.Scan(&like.ID, &like.FromProfile, &like.ToProfile, &like.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		likes = append(likes, like)
	}

	if rows.Err() != nil {
		return nil, classify(fmt.Errorf("%s: iterate: %w", op, rows.Err()))
	}

	return likes, nil
}

const (
	orphanDisputesWhere = `
NOT EXISTS (SELECT 1 FROM contracts c WHERE c.id = disputes.contract_id)
OR EXISTS (
	SELECT 1
	FROM contracts c
	WHERE c.id = disputes.contract_id
		AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.id = c.match_id)
)`
	orphanByMatchWhere = `NOT EXISTS (SELECT 1 FROM matches m WHERE m.id = %s.match_id)`
)

func (r *ReconcileRepo) CountOrphans(ctx context.Context) (model.OrphanCounts, error) {
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.OrphanCounts{}, fmt.Errorf("count orphans: %w", err)
	}

	var counts model.OrphanCounts
	if err := q.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM messages WHERE `+fmt.Sprintf(orphanByMatchWhere, "messages")+`),
	(SELECT COUNT(*) FROM contracts WHERE `+fmt.Sprintf(orphanByMatchWhere, "contracts")+`),
	(SELECT COUNT(*) FROM disputes WHERE `+orphanDisputesWhere+`),
	(SELECT COUNT(*) FROM reviews WHERE `+fmt.Sprintf(orphanByMatchWhere, "reviews")+`)
`).Scan(&counts.Messages, &counts.Contracts, &counts.Disputes, &counts.Reviews); err != nil {
		return model.OrphanCounts{}, classify(fmt.Errorf("count orphans: %w", err))
	}

	return counts, nil
}

// DeleteOrphans removes dependents whose match is gone, disputes first.
func (r *ReconcileRepo) DeleteOrphans(ctx context.Context) (model.OrphanCounts, error) {
	var counts model.OrphanCounts
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q, err := conn(ctx, r.pool)
		if err != nil {
			return err
		}

		steps := []struct {
			query string
			dst   *int
		}{
			{`DELETE FROM disputes WHERE ` + orphanDisputesWhere, &counts.Disputes},
			{`DELETE FROM contracts WHERE ` + fmt.Sprintf(orphanByMatchWhere, "contracts"), &counts.Contracts},
			{`DELETE FROM messages WHERE ` + fmt.Sprintf(orphanByMatchWhere, "messages"), &counts.Messages},
			{`DELETE FROM reviews WHERE ` + fmt.Sprintf(orphanByMatchWhere, "reviews"), &counts.Reviews},
		}
		for _, step := range steps {
			result, err := q.Exec(ctx, step.query)
			if err != nil {
				return classify(fmt.Errorf("delete orphans: %w", err))
			}
			*step.dst = int(result.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return model.OrphanCounts{}, err
	}

	return counts, nil
}
