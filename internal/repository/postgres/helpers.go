package postgres

import (
	"context"
	"time"

	"alcyxob/trainer-schedule/internal/repository"
)

// now matches the microsecond precision of TIMESTAMPTZ.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// missingOrChanged explains a compare-and-swap update that touched no row.
func (c *Connection) missingOrChanged(ctx context.Context, table, id string) error {
	var exists bool
	err := c.querier(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConcurrentModification
}
