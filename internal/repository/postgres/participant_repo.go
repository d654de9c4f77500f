package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"alcyxob/trainer-schedule/internal/domain"
)

// ParticipantRepository implements repository.ParticipantRepository using PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

func scanParticipant(row pgx.CollectableRow) (domain.ParticipantRecord, error) {
	var (
		p         domain.ParticipantRecord
		exercises []byte
	)
	if err := row.Scan(&p.InstanceID, &p.StudentID, &p.Present, &p.Notes, &exercises, &p.UpdatedAt); err != nil {
		return p, err
	}
	if len(exercises) > 0 {
		if err := json.Unmarshal(exercises, &p.Exercises); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (r *ParticipantRepository) Get(ctx context.Context, instanceID, studentID string) (*domain.ParticipantRecord, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `
		SELECT instance_id, student_id, present, notes, exercises, updated_at
		FROM participants WHERE instance_id = $1 AND student_id = $2`, instanceID, studentID)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanParticipant)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *ParticipantRepository) ListByInstance(ctx context.Context, instanceID string) ([]domain.ParticipantRecord, error) {
	rows, err := r.conn.querier(ctx).Query(ctx, `
		SELECT instance_id, student_id, present, notes, exercises, updated_at
		FROM participants WHERE instance_id = $1 ORDER BY student_id`, instanceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanParticipant)
}

// Upsert overwrites the record; participant facts are not versioned.
func (r *ParticipantRepository) Upsert(ctx context.Context, record *domain.ParticipantRecord) error {
	var exercises []byte
	if record.Exercises != nil {
		var err error
		if exercises, err = json.Marshal(record.Exercises); err != nil {
			return err
		}
	}
	record.UpdatedAt = now()
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO participants (instance_id, student_id, present, notes, exercises, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_id, student_id) DO UPDATE
		SET present = EXCLUDED.present, notes = EXCLUDED.notes,
			exercises = EXCLUDED.exercises, updated_at = EXCLUDED.updated_at`,
		record.InstanceID, record.StudentID, record.Present, record.Notes, exercises, record.UpdatedAt,
	)
	return mapError(err)
}
