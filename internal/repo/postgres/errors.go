package postgres

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ivankudzin/matchcore/internal/repo/repoerr"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// classify tags connection level failures with repoerr.ErrUnavailable and
// leaves everything else untouched.
func classify(err error) error {
	if err == nil || errors.Is(err, repoerr.ErrUnavailable) {
		return err
	}

	var connectErr *pgconn.ConnectError
	var opErr *net.OpError
	if errors.As(err, &connectErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%w: %w", repoerr.ErrUnavailable, err)
	}

	return err
}
