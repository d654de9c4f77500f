package repository

import (
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"time"
)

// Error constants for the repository layer. They wrap the domain kinds so
// services and handlers can match either.
var (
	ErrNotFound               = domain.WrapError("repository", domain.ErrNotFound, "not found", nil)
	ErrConcurrentModification = domain.WrapError("repository", domain.ErrConcurrentModification, "record changed concurrently", nil)
)

// TxManager runs a function inside one storage transaction. The transaction
// travels in the context handed to fn; repositories pick it up from there.
// Nested calls join the outer transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// ReadSnapshot runs fn against one consistent, read-only view of the data.
	// Called inside WithTx it joins the outer transaction.
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
	// Lock serializes writers of the given keys until the transaction ends.
	// Backends that rely purely on compare-and-swap may treat it as a no-op.
	Lock(ctx context.Context, keys ...string) error
}

// SeriesRepository stores series versions.
type SeriesRepository interface {
	Create(ctx context.Context, series *domain.Series) error
	GetByID(ctx context.Context, id string) (*domain.Series, error)
	// ListByKey returns every version of (trainer, weekday), oldest first.
	ListByKey(ctx context.Context, trainerID string, weekday time.Weekday) ([]domain.Series, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]domain.Series, error)
	// ListBySeriesID returns every version of one lineage, oldest first.
	ListBySeriesID(ctx context.Context, seriesID string) ([]domain.Series, error)
	// CloseWindow sets effectiveTo to "to" if the stored effectiveTo still equals expectedTo.
	// It returns ErrConcurrentModification otherwise.
	CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CommitmentRepository stores the append-only commitment ledger.
type CommitmentRepository interface {
	Create(ctx context.Context, commitment *domain.Commitment) error
	// ListByKey returns the (student, series) timeline, oldest first.
	ListByKey(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error)
	ListBySeries(ctx context.Context, seriesID string) ([]domain.Commitment, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Commitment, error)
	CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error
}

// InstanceRepository stores touched occurrences and one-off sessions.
type InstanceRepository interface {
	Create(ctx context.Context, instance *domain.Instance) error
	GetByID(ctx context.Context, id string) (*domain.Instance, error)
	// GetByOccurrence finds the series-backed instance for the lineage on the
	// given occurrence date (YYYY-MM-DD).
	GetByOccurrence(ctx context.Context, seriesID, occurrenceDate string) (*domain.Instance, error)
	// ListByTrainer returns instances whose scheduledAt is in [from, to).
	ListByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Instance, error)
	ListBySeries(ctx context.Context, seriesID string) ([]domain.Instance, error)
	// Update writes the instance if its stored revision equals instance.Revision,
	// then increments the revision.
	Update(ctx context.Context, instance *domain.Instance) error
}

// ParticipantRepository stores per-instance execution facts.
type ParticipantRepository interface {
	Get(ctx context.Context, instanceID, studentID string) (*domain.ParticipantRecord, error)
	ListByInstance(ctx context.Context, instanceID string) ([]domain.ParticipantRecord, error)
	Upsert(ctx context.Context, record *domain.ParticipantRecord) error
}

// PersonRepository resolves students and trainers by id.
type PersonRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Person, error)
}

// ExerciseRepository resolves catalog exercises by id.
type ExerciseRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Exercise, error)
}

// Store bundles one backend's repositories.
type Store struct {
	Tx           TxManager
	Series       SeriesRepository
	Commitments  CommitmentRepository
	Instances    InstanceRepository
	Participants ParticipantRepository
	People       PersonRepository
	Exercises    ExerciseRepository
	// Close releases the backend's connections.
	Close func(ctx context.Context) error
}
