package postgres

import (
	"context"

	"alcyxob/trainer-schedule/internal/domain"
)

// PersonRepository implements repository.PersonRepository using PostgreSQL.
type PersonRepository struct {
	conn *Connection
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository(conn *Connection) *PersonRepository {
	return &PersonRepository{conn: conn}
}

func (r *PersonRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	var (
		p    domain.Person
		role string
	)
	err := r.conn.querier(ctx).QueryRow(ctx, `SELECT id, name, role FROM people WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &role)
	if err != nil {
		return nil, mapError(err)
	}
	p.Role = domain.Role(role)
	return &p, nil
}

// Save upserts a directory entry. Used for seeding.
func (r *PersonRepository) Save(ctx context.Context, p domain.Person) error {
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO people (id, name, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		p.ID, p.Name, string(p.Role))
	return mapError(err)
}

// ExerciseRepository implements repository.ExerciseRepository using PostgreSQL.
type ExerciseRepository struct {
	conn *Connection
}

// NewExerciseRepository creates a new ExerciseRepository.
func NewExerciseRepository(conn *Connection) *ExerciseRepository {
	return &ExerciseRepository{conn: conn}
}

func (r *ExerciseRepository) GetByID(ctx context.Context, id string) (*domain.Exercise, error) {
	var e domain.Exercise
	err := r.conn.querier(ctx).QueryRow(ctx,
		`SELECT id, name, description, muscle_group FROM exercises WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.Description, &e.MuscleGroup)
	if err != nil {
		return nil, mapError(err)
	}
	return &e, nil
}

func (r *ExerciseRepository) Save(ctx context.Context, e domain.Exercise) error {
	_, err := r.conn.querier(ctx).Exec(ctx, `
		INSERT INTO exercises (id, name, description, muscle_group) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, muscle_group = EXCLUDED.muscle_group`,
		e.ID, e.Name, e.Description, e.MuscleGroup)
	return mapError(err)
}
