package mongo

import (
	"alcyxob/trainer-schedule/internal/repository"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(mongo.ErrNoDocuments), repository.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapError(dup), repository.ErrConcurrentModification)

	conflict := mongo.CommandError{Code: writeConflictCode, Name: "WriteConflict"}
	assert.ErrorIs(t, mapError(conflict), repository.ErrConcurrentModification)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestWindowEnd(t *testing.T) {
	assert.Equal(t, bson.M{"$exists": false}, windowEnd(nil))

	at := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, windowEnd(&at))
}
