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

const seriesCollectionName = "series"

// seriesDoc adds the derived "open" flag the partial unique index filters on.
type seriesDoc struct {
	domain.Series `bson:",inline"`
	Open          bool `bson:"open"`
}

// mongoSeriesRepository implements repository.SeriesRepository.
type mongoSeriesRepository struct {
	collection *mongo.Collection
}

func NewMongoSeriesRepository(db *mongo.Database) repository.SeriesRepository {
	return &mongoSeriesRepository{
		collection: db.Collection(seriesCollectionName),
	}
}

func (r *mongoSeriesRepository) Create(ctx context.Context, series *domain.Series) error {
	if series.ID == "" {
		series.ID = primitive.NewObjectID().Hex()
	}
	if series.SeriesID == "" {
		series.SeriesID = series.ID
	}
	now := now()
	series.CreatedAt = now
	series.UpdatedAt = now

	if series.Active {
		siblings, err := r.ListByKey(ctx, series.TrainerID, series.Weekday)
		if err != nil {
			return err
		}
		for _, other := range siblings {
			if other.Active && temporal.Overlaps(other, *series) {
				return repository.ErrConcurrentModification
			}
		}
	}

	_, err := r.collection.InsertOne(ctx, seriesDoc{Series: *series, Open: series.Open()})
	return mapError(err)
}

func (r *mongoSeriesRepository) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	var doc seriesDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	return &doc.Series, nil
}

func (r *mongoSeriesRepository) find(ctx context.Context, filter bson.M) ([]domain.Series, error) {
	findOptions := options.Find().SetSort(bson.D{
		{Key: "effectiveFrom", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []seriesDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Series, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Series)
	}
	temporal.Sort(out)
	return out, nil
}

func (r *mongoSeriesRepository) ListByKey(ctx context.Context, trainerID string, weekday time.Weekday) ([]domain.Series, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID, "weekday": weekday})
}

func (r *mongoSeriesRepository) ListByTrainer(ctx context.Context, trainerID string) ([]domain.Series, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

func (r *mongoSeriesRepository) ListBySeriesID(ctx context.Context, seriesID string) ([]domain.Series, error) {
	return r.find(ctx, bson.M{"seriesId": seriesID})
}

// CloseWindow only matches while effectiveTo still holds the expected value.
func (r *mongoSeriesRepository) CloseWindow(ctx context.Context, id string, expectedTo *time.Time, to time.Time) error {
	filter := bson.M{"_id": id, "effectiveTo": windowEnd(expectedTo)}
	update := bson.M{
		"$set": bson.M{
			"effectiveTo": to,
			"open":        false,
			"updatedAt":   now(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return missingOrChanged(ctx, r.collection, id)
	}
	return nil
}

func (r *mongoSeriesRepository) SetActive(ctx context.Context, id string, active bool) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if active && !current.Active {
		siblings, err := r.ListByKey(ctx, current.TrainerID, current.Weekday)
		if err != nil {
			return err
		}
		for _, other := range siblings {
			if other.ID != id && other.Active && temporal.Overlaps(other, *current) {
				return repository.ErrConcurrentModification
			}
		}
	}

	update := bson.M{"$set": bson.M{"active": active, "updatedAt": now()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSeriesIndexes creates the lookup indexes and the guard against two
// open active versions of one (trainer, weekday).
func EnsureSeriesIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "weekday", Value: 1}, {Key: "effectiveFrom", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "seriesId", Value: 1}, {Key: "effectiveFrom", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "weekday", Value: 1}},
			Options: options.Index().
				SetName("one_open_active_version").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"open": true, "active": true}),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
