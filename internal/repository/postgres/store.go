package postgres

import (
	"context"
	"log/slog"

	"alcyxob/trainer-schedule/internal/config"
	"alcyxob/trainer-schedule/internal/repository"
)

// NewStore connects, optionally migrates, and wires every repository.
func NewStore(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (repository.Store, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return repository.Store{}, err
	}
	if cfg.Migrate {
		if err := NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return repository.Store{}, err
		}
		logger.Info("postgres migrations applied")
	}
	return StoreFor(conn), nil
}

// StoreFor exposes an open connection through the repository interfaces.
func StoreFor(conn *Connection) repository.Store {
	return repository.Store{
		Tx:           conn,
		Series:       NewSeriesRepository(conn),
		Commitments:  NewCommitmentRepository(conn),
		Instances:    NewInstanceRepository(conn),
		Participants: NewParticipantRepository(conn),
		People:       NewPersonRepository(conn),
		Exercises:    NewExerciseRepository(conn),
		Close: func(context.Context) error {
			conn.Close()
			return nil
		},
	}
}
