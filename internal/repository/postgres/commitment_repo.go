package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alcyxob/trainer-schedule/internal/domain"
)

const commitmentColumns = `id, student_id, series_id, status, effective_from, effective_to, created_at`

// CommitmentRepository implements repository.CommitmentRepository using PostgreSQL.
type CommitmentRepository struct {
	conn *Connection
}

// NewCommitmentRepository creates a new CommitmentRepository.
func NewCommitmentRepository(conn *Connection) *CommitmentRepository {
	return &CommitmentRepository{conn: conn}
}

func scanCommitment(row pgx.CollectableRow) (domain.Commitment, error) {
	var (
		c      domain.Commitment
		status string
	)
	err := row.Scan(&c.ID, &c.StudentID, &c.SeriesID, &status, &c.EffectiveFrom, &c.EffectiveTo, &c.CreatedAt)
	c.Status = domain.CommitmentStatus(status)
	return c, err
}

func (r *CommitmentRepository) Create(ctx context.Context, c *domain.Commitment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = now()

	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO commitments (`+commitmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.StudentID, c.SeriesID, string(c.Status), c.EffectiveFrom, c.EffectiveTo, c.CreatedAt,
	)
	return mapError(err)
}

func (r *CommitmentRepository) list(ctx context.Context, where string, args ...any) ([]domain.Commitment, error) {
	rows, err := r.conn.querier(ctx).Query(ctx,
		`SELECT `+commitmentColumns+` FROM commitments WHERE `+where+` ORDER BY effective_from, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCommitment)
}

func (r *CommitmentRepository) ListByKey(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error) {
	return r.list(ctx, "student_id = $1 AND series_id = $2", studentID, seriesID)
}

func (r *CommitmentRepository) ListBySeries(ctx context.Context, seriesID string) ([]domain.Commitment, error) {
	return r.list(ctx, "series_id = $1", seriesID)
}

func (r *CommitmentRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.Commitment, error) {
	return r.list(ctx, "student_id = $1", studentID)
}

func (r *CommitmentRepository) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	tag, err := r.conn.querier(ctx).Exec(ctx, `
		UPDATE commitments SET effective_to = $3
		WHERE id = $1 AND effective_to IS NOT DISTINCT FROM $2`,
		id, expectedTo, to,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.conn.missingOrChanged(ctx, "commitments", id)
	}
	return nil
}
