// Package mongo is the MongoDB repository backend. Writes that must be atomic
// run in multi-document transactions, so the server must be a replica set.
package mongo

import (
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewStore wires every repository to the database and makes sure indexes exist.
func NewStore(ctx context.Context, client *mongo.Client, dbName string, logger *slog.Logger) (repository.Store, error) {
	db := client.Database(dbName)
	if err := EnsureIndexes(ctx, db, logger); err != nil {
		return repository.Store{}, err
	}
	return repository.Store{
		Tx:           NewMongoTxManager(client, db),
		Series:       NewMongoSeriesRepository(db),
		Commitments:  NewMongoCommitmentRepository(db),
		Instances:    NewMongoInstanceRepository(db),
		Participants: NewMongoParticipantRepository(db),
		People:       NewMongoPersonRepository(db),
		Exercises:    NewMongoExerciseRepository(db),
		Close: func(context.Context) error {
			return DisconnectDB(client)
		},
	}, nil
}

// EnsureIndexes creates the indexes of every collection. The unique ones back
// the overlap and one-instance-per-occurrence guarantees, so failures are fatal.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	steps := []struct {
		collection string
		ensure     func(context.Context, *mongo.Collection) error
	}{
		{seriesCollectionName, EnsureSeriesIndexes},
		{commitmentCollectionName, EnsureCommitmentIndexes},
		{instanceCollectionName, EnsureInstanceIndexes},
		{participantCollectionName, EnsureParticipantIndexes},
		{exerciseCollectionName, EnsureExerciseIndexes},
	}
	for _, step := range steps {
		if err := step.ensure(ctx, db.Collection(step.collection)); err != nil {
			return fmt.Errorf("creating indexes for %s: %w", step.collection, err)
		}
		logger.Debug("indexes ensured", slog.String("collection", step.collection))
	}
	return nil
}
