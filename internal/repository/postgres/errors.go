package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"alcyxob/trainer-schedule/internal/repository"
)

// SQLSTATE codes that mean another writer got there first.
var concurrencyCodes = map[string]bool{
	"23505": true, // unique_violation
	"23P01": true, // exclusion_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// mapError translates driver errors onto the repository taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && concurrencyCodes[pgErr.Code] {
		return errors.Join(repository.ErrConcurrentModification, err)
	}
	return err
}
