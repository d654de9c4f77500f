package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alcyxob/trainer-schedule/internal/domain"
)

const instanceColumns = `id, series_id, series_version_id, trainer_id, scheduled_at, occurrence_date,
	base, diff, cancelled, revision, created_at, updated_at`

// InstanceRepository implements repository.InstanceRepository using PostgreSQL.
// The diff column holds only present keys, with JSON null for cleared fields.
type InstanceRepository struct {
	conn *Connection
}

// NewInstanceRepository creates a new InstanceRepository.
func NewInstanceRepository(conn *Connection) *InstanceRepository {
	return &InstanceRepository{conn: conn}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanInstance(row pgx.CollectableRow) (domain.Instance, error) {
	var (
		inst                      domain.Instance
		seriesID, seriesVersionID *string
		occurrenceDate            *string
		base, diff                []byte
	)
	err := row.Scan(
		&inst.ID, &seriesID, &seriesVersionID, &inst.TrainerID, &inst.ScheduledAt, &occurrenceDate,
		&base, &diff,
		&inst.Cancelled, &inst.Revision, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return inst, err
	}
	if seriesID != nil {
		inst.SeriesID = *seriesID
	}
	if seriesVersionID != nil {
		inst.SeriesVersionID = *seriesVersionID
	}
	if occurrenceDate != nil {
		inst.OccurrenceDate = *occurrenceDate
	}
	if len(base) > 0 {
		inst.Base = &domain.SessionFields{}
		if err := json.Unmarshal(base, inst.Base); err != nil {
			return inst, err
		}
	}
	if len(diff) > 0 {
		if err := json.Unmarshal(diff, &inst.Diff); err != nil {
			return inst, err
		}
	}
	return inst, nil
}

func encodeInstance(inst *domain.Instance) (base, diff []byte, err error) {
	if inst.Base != nil {
		if base, err = json.Marshal(inst.Base); err != nil {
			return nil, nil, err
		}
	}
	diff, err = json.Marshal(inst.Diff)
	return base, diff, err
}

func (r *InstanceRepository) Create(ctx context.Context, inst *domain.Instance) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.Revision = 1

	base, diff, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	_, err = r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO instances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inst.ID, nullable(inst.SeriesID), nullable(inst.SeriesVersionID), inst.TrainerID, inst.ScheduledAt,
		nullable(inst.OccurrenceDate), base, diff, inst.Cancelled, inst.Revision, inst.CreatedAt, inst.UpdatedAt,
	)
	return mapError(err)
}

func (r *InstanceRepository) one(ctx context.Context, where string, args ...any) (*domain.Instance, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	inst, err := pgx.CollectExactlyOneRow(rows, scanInstance)
	if err != nil {
		return nil, mapError(err)
	}
	return &inst, nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	return r.one(ctx, "id = $1", id)
}

func (r *InstanceRepository) GetByOccurrence(ctx context.Context, seriesID, occurrenceDate string) (*domain.Instance, error) {
	return r.one(ctx, "series_id = $1 AND occurrence_date = $2", seriesID, occurrenceDate)
}

func (r *InstanceRepository) list(ctx context.Context, where string, args ...any) ([]domain.Instance, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE `+where+` ORDER BY scheduled_at, id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanInstance)
}

func (r *InstanceRepository) ListByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Instance, error) {
	return r.list(ctx, "trainer_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3", trainerID, from, to)
}

func (r *InstanceRepository) ListBySeries(ctx context.Context, seriesID string) ([]domain.Instance, error) {
	return r.list(ctx, "series_id = $1", seriesID)
}

// Update writes the row only while its revision is unchanged.
func (r *InstanceRepository) Update(ctx context.Context, inst *domain.Instance) error {
	base, diff, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	updatedAt := now()
	tag, err := r.conn.querier(ctx).Exec(ctx, `
		UPDATE instances
		SET trainer_id = $3, series_version_id = $4, scheduled_at = $5, base = $6, diff = $7,
			cancelled = $8, revision = revision + 1, updated_at = $9
		WHERE id = $1 AND revision = $2`,
		inst.ID, inst.Revision, inst.TrainerID, nullable(inst.SeriesVersionID), inst.ScheduledAt,
		base, diff, inst.Cancelled, updatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.conn.missingOrChanged(ctx, "instances", inst.ID)
	}
	inst.Revision++
	inst.UpdatedAt = updatedAt
	return nil
}
