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

const defaultMatchesLimit = 100

type MatchRepo struct {
	pool *pgxpool.Pool
	tx   *Transactor
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{
		pool: pool,
		tx:   NewTransactor(pool),
	}
}

func (r *MatchRepo) InsertIfAbsent(ctx context.Context, x, y string) (model.Match, bool, error) {
	if x == "" || y == "" || x == y {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Match{}, false, fmt.Errorf("create match: %w", err)
	}

	a, b := rules.CanonicalPair(x, y)

	var match model.Match
	err = q.QueryRow(ctx, `
INSERT INTO matches (
	id,
	a,
	b,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (a, b) DO NOTHING
RETURNING id, a, b, created_at
`, rules.NewMatchID(), a, b).Scan(
		&match.ID,
		&match.A,
		&match.B,
		&match.CreatedAt,
	)
	switch {
	case err == nil:
		return match, true, nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
	default:
		return model.Match{}, false, classify(fmt.Errorf("create match: %w", err))
	}

	existing, found, err := r.FindByPair(ctx, a, b)
	if err != nil {
		return model.Match{}, false, err
	}
	if !found {
		return model.Match{}, false, fmt.Errorf("match %s <-> %s vanished after conflict", a, b)
	}

	return existing, false, nil
}

// FindByPair also sees rows stored in reversed order by older writers.
func (r *MatchRepo) FindByPair(ctx context.Context, x, y string) (model.Match, bool, error) {
	if x == "" || y == "" {
		return model.Match{}, false, fmt.Errorf("invalid match lookup payload")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Match{}, false, fmt.Errorf("lookup match: %w", err)
	}

	a, b := rules.CanonicalPair(x, y)
	match, err := scanMatch(q.QueryRow(ctx, `
SELECT id, a, b, created_at
FROM matches
WHERE (a = $1 AND b = $2) OR (a = $2 AND b = $1)
ORDER BY created_at ASC, id ASC
LIMIT 1
`, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, false, nil
		}
		return model.Match{}, false, classify(fmt.Errorf("lookup match: %w", err))
	}

	return match, true, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, matchID string) (model.Match, bool, error) {
	if matchID == "" {
		return model.Match{}, false, fmt.Errorf("invalid match id")
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return model.Match{}, false, fmt.Errorf("get match: %w", err)
	}

	match, err := scanMatch(q.QueryRow(ctx, `
SELECT id, a, b, created_at
FROM matches
WHERE id = $1
`, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, false, nil
		}
		return model.Match{}, false, classify(fmt.Errorf("get match: %w", err))
	}

	return match, true, nil
}

func (r *MatchRepo) List(ctx context.Context, filter model.MatchFilter) ([]model.Match, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMatchesLimit
	}
	q, err := conn(ctx, r.pool)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT id, a, b, created_at
FROM matches
WHERE $1::text = '' OR a = $1 OR b = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, filter.ProfileID, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list matches: %w", err))
	}
	defer rows.Close()

	items := make([]model.Match, 0, limit)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, match)
	}

	if rows.Err() != nil {
		return nil, classify(fmt.Errorf("iterate matches: %w", rows.Err()))
	}

	return items, nil
}

// DeleteByID removes the match and everything hanging off it in one transaction:
// disputes of its contracts, contracts, messages, reviews, then the match row.
func (r *MatchRepo) DeleteByID(ctx context.Context, matchID string) (bool, error) {
	if matchID == "" {
		return false, fmt.Errorf("invalid match delete payload")
	}

	var deleted bool
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		q, err := conn(ctx, r.pool)
		if err != nil {
			return err
		}

		steps := []struct {
			name  string
			query string
		}{
			{"disputes", `
DELETE FROM disputes
WHERE contract_id IN (SELECT id FROM contracts WHERE match_id = $1)
`},
			{"contracts", `DELETE FROM contracts WHERE match_id = $1`},
			{"messages", `DELETE FROM messages WHERE match_id = $1`},
			{"reviews", `DELETE FROM reviews WHERE match_id = $1`},
		}
		for _, step := range steps {
			if _, err := q.Exec(ctx, step.query, matchID); err != nil {
				return classify(fmt.Errorf("delete match %s: %w", step.name, err))
			}
		}

		result, err := q.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
		if err != nil {
			return classify(fmt.Errorf("delete match: %w", err))
		}
		deleted = result.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var match model.Match
	err := row.Scan(
		&match.ID,
		&match.A,
		&match.B,
		&match.CreatedAt,
	)
	return match, err
}
