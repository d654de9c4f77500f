package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
)

const seriesColumns = `id, series_id, trainer_id, weekday, start_minute, duration_minutes, name,
	room, equipment, notes, max_participants, effective_from, effective_to, active, created_at, updated_at`

// SeriesRepository implements repository.SeriesRepository using PostgreSQL.
type SeriesRepository struct {
	conn *Connection
}

// NewSeriesRepository creates a new SeriesRepository.
func NewSeriesRepository(conn *Connection) *SeriesRepository {
	return &SeriesRepository{conn: conn}
}

func scanSeries(row pgx.CollectableRow) (domain.Series, error) {
	var (
		s                domain.Series
		weekday, startAt int
	)
	err := row.Scan(
		&s.ID, &s.SeriesID, &s.TrainerID, &weekday, &startAt, &s.DurationMinutes, &s.Name,
		&s.Room, &s.Equipment, &s.Notes, &s.MaxParticipants,
		&s.EffectiveFrom, &s.EffectiveTo, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Weekday = time.Weekday(weekday)
	s.StartTime = domain.Clock(startAt)
	return s, err
}

func (r *SeriesRepository) Create(ctx context.Context, s *domain.Series) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SeriesID == "" {
		s.SeriesID = s.ID
	}
	now := now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO series (`+seriesColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.ID, s.SeriesID, s.TrainerID, int(s.Weekday), int(s.StartTime), s.DurationMinutes, s.Name,
		s.Room, s.Equipment, s.Notes, s.MaxParticipants,
		s.EffectiveFrom, s.EffectiveTo, s.Active, s.CreatedAt, s.UpdatedAt,
	)
	return mapError(err)
}

func (r *SeriesRepository) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSeries)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r *SeriesRepository) list(ctx context.Context, where string, args ...any) ([]domain.Series, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE `+where+` ORDER BY effective_from, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanSeries)
}

func (r *SeriesRepository) ListByKey(ctx context.Context, trainerID string, weekday time.Weekday) ([]domain.Series, error) {
	return r.list(ctx, "trainer_id = $1 AND weekday = $2", trainerID, int(weekday))
}

func (r *SeriesRepository) ListByTrainer(ctx context.Context, trainerID string) ([]domain.Series, error) {
	return r.list(ctx, "trainer_id = $1", trainerID)
}

func (r *SeriesRepository) ListBySeriesID(ctx context.Context, seriesID string) ([]domain.Series, error) {
	return r.list(ctx, "series_id = $1", seriesID)
}

// CloseWindow updates effective_to only while it still holds the expected value.
func (r *SeriesRepository) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	tag, err := r.conn.querier(ctx).Exec(ctx, `
		UPDATE series SET effective_to = $3, updated_at = $4
		WHERE id = $1 AND effective_to IS NOT DISTINCT FROM $2`,
		id, expectedTo, to, now(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.conn.missingOrChanged(ctx, "series", id)
	}
	return nil
}

func (r *SeriesRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.conn.querier(ctx).Exec(ctx,
		`UPDATE series SET active = $2, updated_at = $3 WHERE id = $1`, id, active, now())
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
