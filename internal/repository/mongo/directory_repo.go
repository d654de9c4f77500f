package mongo

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	peopleCollectionName   = "people"
	exerciseCollectionName = "exercises"
)

// mongoPersonRepository resolves students and trainers from the people directory.
type mongoPersonRepository struct {
	collection *mongo.Collection
}

func NewMongoPersonRepository(db *mongo.Database) repository.PersonRepository {
	return &mongoPersonRepository{
		collection: db.Collection(peopleCollectionName),
	}
}

func (r *mongoPersonRepository) GetByID(ctx context.Context, id string) (*domain.Person, error) {
	var person domain.Person
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&person); err != nil {
		return nil, mapError(err)
	}
	return &person, nil
}

// Save upserts a directory entry. Used for seeding.
func (r *mongoPersonRepository) Save(ctx context.Context, person domain.Person) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": person.ID}, person, options.Replace().SetUpsert(true))
	return err
}

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	collection *mongo.Collection
}

func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
	}
}

// GetByID retrieves an exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id string) (*domain.Exercise, error) {
	var exercise domain.Exercise
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise); err != nil {
		return nil, mapError(err)
	}
	return &exercise, nil
}

func (r *mongoExerciseRepository) Save(ctx context.Context, exercise domain.Exercise) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": exercise.ID}, exercise, options.Replace().SetUpsert(true))
	return err
}

// EnsureExerciseIndexes creates necessary indexes for the exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
		Options: options.Index().SetName("exercise_text_search"),
	})
	return err
}
