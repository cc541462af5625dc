package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	return hasSQLState(err, sqlStateUniqueViolation)
}

// isForeignKeyViolation проверяет нарушение внешнего ключа (23503)
func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, sqlStateForeignKeyViolation)
}

func hasSQLState(err error, code string) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return true
	}
	return false
}
