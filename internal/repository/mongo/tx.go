package mongo

import (
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const lockCollectionName = "locks"

// writeConflictCode is returned when two transactions touch the same document.
const writeConflictCode = 112

// mongoTxManager runs functions inside a MongoDB multi-document transaction.
// Repositories join it through the mongo.SessionContext handed to fn.
type mongoTxManager struct {
	client *mongo.Client
	locks  *mongo.Collection
}

func NewMongoTxManager(client *mongo.Client, db *mongo.Database) repository.TxManager {
	return &mongoTxManager{
		client: client,
		locks:  db.Collection(lockCollectionName),
	}
}

func (m *mongoTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txOptions := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	// WithTransaction retries fn on transient errors, including lost lock races.
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOptions)
	return mapError(err)
}

// ReadSnapshot runs fn in a snapshot session: every read sees the same
// majority-committed point in time. It joins a session already in ctx.
func (m *mongoTxManager) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := m.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	return mapError(fn(mongo.NewSessionContext(ctx, session)))
}

// Lock writes one marker document per key inside the transaction. A second
// transaction writing the same marker hits a write conflict and is retried
// after the first one ends.
func (m *mongoTxManager) Lock(ctx context.Context, keys ...string) error {
	if mongo.SessionFromContext(ctx) == nil {
		return errors.New("mongo: Lock called outside a transaction")
	}
	for _, key := range keys {
		_, err := m.locks.UpdateOne(ctx,
			bson.M{"_id": key},
			bson.M{"$inc": bson.M{"version": 1}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// mapError translates driver errors onto the repository taxonomy. Transient
// transaction errors are passed through untouched while a transaction is
// still able to retry them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
		return errors.Join(repository.ErrConcurrentModification, err)
	}
	return err
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}
