package mongo

import (
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// now matches the millisecond precision BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// windowEnd builds the filter value for an expected effectiveTo. A nil end
// matches documents where the field was never written.
func windowEnd(expected *time.Time) any {
	if expected == nil {
		return bson.M{"$exists": false}
	}
	return *expected
}

// missingOrChanged explains a compare-and-swap update that matched nothing.
func missingOrChanged(ctx context.Context, collection *mongo.Collection, id string) error {
	count, err := collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConcurrentModification
}
