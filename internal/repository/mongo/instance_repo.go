package mongo

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const instanceCollectionName = "instances"

// instanceDoc stores the diff as a sub-document keyed by field name, with
// BSON null for cleared fields and no key for inherited ones.
type instanceDoc struct {
	domain.Instance `bson:",inline"`
	Diff            bson.M `bson:"diff,omitempty"`
}

func toInstanceDoc(inst *domain.Instance) (instanceDoc, error) {
	doc := instanceDoc{Instance: *inst}
	if inst.Diff.IsEmpty() {
		return doc, nil
	}
	raw, err := json.Marshal(inst.Diff)
	if err != nil {
		return doc, err
	}
	if err := bson.UnmarshalExtJSON(raw, false, &doc.Diff); err != nil {
		return doc, err
	}
	return doc, nil
}

func (doc instanceDoc) toDomain() (domain.Instance, error) {
	inst := doc.Instance
	inst.Diff = domain.InstanceDiff{}
	if len(doc.Diff) == 0 {
		return inst, nil
	}
	raw, err := bson.MarshalExtJSON(doc.Diff, false, false)
	if err != nil {
		return inst, err
	}
	if err := json.Unmarshal(raw, &inst.Diff); err != nil {
		return inst, err
	}
	return inst, nil
}

// mongoInstanceRepository implements repository.InstanceRepository.
type mongoInstanceRepository struct {
	collection *mongo.Collection
}

func NewMongoInstanceRepository(db *mongo.Database) repository.InstanceRepository {
	return &mongoInstanceRepository{
		collection: db.Collection(instanceCollectionName),
	}
}

func (r *mongoInstanceRepository) Create(ctx context.Context, inst *domain.Instance) error {
	if inst.ID == "" {
		inst.ID = primitive.NewObjectID().Hex()
	}
	now := now()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.Revision = 1

	doc, err := toInstanceDoc(inst)
	if err != nil {
		return err
	}
	_, err = r.collection.InsertOne(ctx, doc)
	return mapError(err)
}

func (r *mongoInstanceRepository) findOne(ctx context.Context, filter bson.M) (*domain.Instance, error) {
	var doc instanceDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err)
	}
	inst, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *mongoInstanceRepository) GetByID(ctx context.Context, id string) (*domain.Instance, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoInstanceRepository) GetByOccurrence(ctx context.Context, seriesID, occurrenceDate string) (*domain.Instance, error) {
	return r.findOne(ctx, bson.M{"seriesId": seriesID, "occurrenceDate": occurrenceDate})
}

func (r *mongoInstanceRepository) find(ctx context.Context, filter bson.M) ([]domain.Instance, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []instanceDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Instance, 0, len(docs))
	for _, doc := range docs {
		inst, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (r *mongoInstanceRepository) ListByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]domain.Instance, error) {
	return r.find(ctx, bson.M{
		"trainerId":   trainerID,
		"scheduledAt": bson.M{"$gte": from, "$lt": to},
	})
}

func (r *mongoInstanceRepository) ListBySeries(ctx context.Context, seriesID string) ([]domain.Instance, error) {
	return r.find(ctx, bson.M{"seriesId": seriesID})
}

// Update replaces the document only while its revision is unchanged.
func (r *mongoInstanceRepository) Update(ctx context.Context, inst *domain.Instance) error {
	next := *inst
	next.Revision = inst.Revision + 1
	next.UpdatedAt = now()

	doc, err := toInstanceDoc(&next)
	if err != nil {
		return err
	}
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": inst.ID, "revision": inst.Revision}, doc)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return missingOrChanged(ctx, r.collection, inst.ID)
	}
	inst.Revision = next.Revision
	inst.UpdatedAt = next.UpdatedAt
	return nil
}

// EnsureInstanceIndexes keeps one materialized instance per occurrence.
func EnsureInstanceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "seriesId", Value: 1}, {Key: "occurrenceDate", Value: 1}},
			Options: options.Index().
				SetName("one_instance_per_occurrence").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"seriesId": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "scheduledAt", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
