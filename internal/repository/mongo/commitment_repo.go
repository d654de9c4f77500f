package mongo

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/temporal"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const commitmentCollectionName = "commitments"

type commitmentDoc struct {
	domain.Commitment `bson:",inline"`
	Open              bool `bson:"open"`
}

// mongoCommitmentRepository implements repository.CommitmentRepository.
type mongoCommitmentRepository struct {
	collection *mongo.Collection
}

func NewMongoCommitmentRepository(db *mongo.Database) repository.CommitmentRepository {
	return &mongoCommitmentRepository{
		collection: db.Collection(commitmentCollectionName),
	}
}

func (r *mongoCommitmentRepository) Create(ctx context.Context, c *domain.Commitment) error {
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	c.CreatedAt = now()

	timeline, err := r.ListByKey(ctx, c.StudentID, c.SeriesID)
	if err != nil {
		return err
	}
	for _, other := range timeline {
		if temporal.Overlaps(other, *c) {
			return repository.ErrConcurrentModification
		}
	}

	_, err = r.collection.InsertOne(ctx, commitmentDoc{Commitment: *c, Open: c.EffectiveTo == nil})
	return mapError(err)
}

func (r *mongoCommitmentRepository) find(ctx context.Context, filter bson.M) ([]domain.Commitment, error) {
	findOptions := options.Find().SetSort(bson.D{
		{Key: "effectiveFrom", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []commitmentDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Commitment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Commitment)
	}
	temporal.Sort(out)
	return out, nil
}

func (r *mongoCommitmentRepository) ListByKey(ctx context.Context, studentID, seriesID string) ([]domain.Commitment, error) {
	return r.find(ctx, bson.M{"studentId": studentID, "seriesId": seriesID})
}

func (r *mongoCommitmentRepository) ListBySeries(ctx context.Context, seriesID string) ([]domain.Commitment, error) {
	return r.find(ctx, bson.M{"seriesId": seriesID})
}

func (r *mongoCommitmentRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.Commitment, error) {
	return r.find(ctx, bson.M{"studentId": studentID})
}

func (r *mongoCommitmentRepository) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	filter := bson.M{"_id": id, "effectiveTo": windowEnd(expectedTo)}
	update := bson.M{"$set": bson.M{"effectiveTo": to, "open": false}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return missingOrChanged(ctx, r.collection, id)
	}
	return nil
}

// EnsureCommitmentIndexes allows at most one open record per (student, series).
func EnsureCommitmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "seriesId", Value: 1}, {Key: "effectiveFrom", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "seriesId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "seriesId", Value: 1}},
			Options: options.Index().
				SetName("one_open_commitment").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"open": true}),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
