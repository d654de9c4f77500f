package mongo

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const participantCollectionName = "participants"

type participantDoc struct {
	ID                       string `bson:"_id"`
	domain.ParticipantRecord `bson:",inline"`
}

func participantID(instanceID, studentID string) string {
	return instanceID + "|" + studentID
}

// mongoParticipantRepository implements repository.ParticipantRepository.
type mongoParticipantRepository struct {
	collection *mongo.Collection
}

func NewMongoParticipantRepository(db *mongo.Database) repository.ParticipantRepository {
	return &mongoParticipantRepository{
		collection: db.Collection(participantCollectionName),
	}
}

func (r *mongoParticipantRepository) Get(ctx context.Context, instanceID, studentID string) (*domain.ParticipantRecord, error) {
	var doc participantDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": participantID(instanceID, studentID)}).Decode(&doc)
	if err != nil {
		return nil, mapError(err)
	}
	return &doc.ParticipantRecord, nil
}

func (r *mongoParticipantRepository) ListByInstance(ctx context.Context, instanceID string) ([]domain.ParticipantRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "studentId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"instanceId": instanceID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []participantDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.ParticipantRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.ParticipantRecord)
	}
	return out, nil
}

// Upsert overwrites the record; participant facts are not versioned.
func (r *mongoParticipantRepository) Upsert(ctx context.Context, record *domain.ParticipantRecord) error {
	record.UpdatedAt = now()
	id := participantID(record.InstanceID, record.StudentID)
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": id},
		participantDoc{ID: id, ParticipantRecord: *record},
		options.Replace().SetUpsert(true),
	)
	return mapError(err)
}

func EnsureParticipantIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "instanceId", Value: 1}, {Key: "studentId", Value: 1}},
		Options: options.Index(),
	})
	return err
}
