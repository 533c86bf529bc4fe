package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const defaultLikesLimit = 50

type LikeRepo struct {
	pool *pgxpool.Pool
}

func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

// InsertIfAbsent returns the stored like for (from, to) and whether this call created it.
func (r *LikeRepo) InsertIfAbsent(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error) {
	if fromProfile == "" || toProfile == "" || fromProfile == toProfile {
		return model.Like{}, false, fmt.Errorf("invalid like payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Like{}, false, fmt.Errorf("insert like: %w", err)
	}

	var like model.Like
	err = q.QueryRow(ctx, `
INSERT INTO likes (
	id,
	from_profile,
	to_profile,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (from_profile, to_profile) DO NOTHING
RETURNING id, from_profile, to_profile, created_at
`, rules.NewLikeID(), fromProfile, toProfile).Scan(
		&like.ID,
		&like.FromProfile,
		&like.ToProfile,
		&like.CreatedAt,
	)
	switch {
	case err == nil:
		return like, true, nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
	default:
		return model.Like{}, false, classify(fmt.Errorf("insert like: %w", err))
	}

	existing, found, err := r.Find(ctx, fromProfile, toProfile)
	if err != nil {
		return model.Like{}, false, err
	}
	if !found {
		return model.Like{}, false, fmt.Errorf("like %s -> %s vanished after conflict", fromProfile, toProfile)
	}

	return existing, false, nil
}

func (r *LikeRepo) Find(ctx context.Context, fromProfile, toProfile string) (model.Like, bool, error) {
	if fromProfile == "" || toProfile == "" {
		return model.Like{}, false, fmt.Errorf("invalid like lookup payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Like{}, false, fmt.Errorf("lookup like: %w", err)
	}

	var like model.Like
	err = q.QueryRow(ctx, `
SELECT id, from_profile, to_profile, created_at
FROM likes
WHERE from_profile = $1 AND to_profile = $2
LIMIT 1
`, fromProfile, toProfile).Scan(
		&like.ID,
		&like.FromProfile,
		&like.ToProfile,
		&like.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Like{}, false, nil
		}
		return model.Like{}, false, classify(fmt.Errorf("lookup like: %w", err))
	}

	return like, true, nil
}

func (r *LikeRepo) Delete(ctx context.Context, fromProfile, toProfile string) (bool, error) {
	if fromProfile == "" || toProfile == "" {
		return false, fmt.Errorf("invalid like delete payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	result, err := q.Exec(ctx, `
DELETE FROM likes
WHERE from_profile = $1 AND to_profile = $2
`, fromProfile, toProfile)
	if err != nil {
		return false, classify(fmt.Errorf("delete like: %w", err))
	}

	return result.RowsAffected() > 0, nil
}

func (r *LikeRepo) DeleteBothDirections(ctx context.Context, x, y string) (int64, error) {
	if x == "" || y == "" {
		return 0, fmt.Errorf("invalid like delete payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return 0, fmt.Errorf("delete pair likes: %w", err)
	}

	result, err := q.Exec(ctx, `
DELETE FROM likes
WHERE
	(from_profile = $1 AND to_profile = $2)
	OR (from_profile = $2 AND to_profile = $1)
`, x, y)
	if err != nil {
		return 0, classify(fmt.Errorf("delete pair likes: %w", err))
	}

	return result.RowsAffected(), nil
}

func (r *LikeRepo) ListTo(ctx context.Context, profileID string, limit int) ([]model.Like, error) {
	return r.list(ctx, `
SELECT id, from_profile, to_profile, created_at
FROM likes
WHERE to_profile = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, profileID, limit)
}

func (r *LikeRepo) ListFrom(ctx context.Context, profileID string, limit int) ([]model.Like, error) {
	return r.list(ctx, `
SELECT id, from_profile, to_profile, created_at
FROM likes
WHERE from_profile = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, profileID, limit)
}

func (r *LikeRepo) list(ctx context.Context, query, profileID string, limit int) ([]model.Like, error) {
	if profileID == "" {
		return nil, fmt.Errorf("invalid profile id")
	}
	if limit <= 0 {
		limit = defaultLikesLimit
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}

	rows, err := q.Query(ctx, query, profileID, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list likes: %w", err))
	}
	defer rows.Close()

	items := make([]model.Like, 0, limit)
	for rows.Next() {
		var like model.Like
		if err := rows.Scan(
			&like.ID,
			&like.FromProfile,
			&like.ToProfile,
			&like.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		items = append(items, like)
	}

	if rows.Err() != nil {
		return nil, classify(fmt.Errorf("iterate likes: %w", rows.Err()))
	}

	return items, nil
}
